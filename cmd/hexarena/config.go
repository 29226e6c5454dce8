package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/hexarena/internal/config"
)

var flagDefaults bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print where the configuration was loaded from and its values.

Search order: --config, ~/.hexarena/configs/hexarena.{yaml,yml,toml},
./configs/hexarena.{yaml,yml,toml}, then the built-in defaults.

Examples:
  hexarena config
  hexarena config --defaults > ~/.hexarena/configs/hexarena.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&flagDefaults, "defaults", false, "Print the built-in default file")
}

func runConfig(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if flagDefaults {
		_, err := out.Write(config.DefaultYAML())
		return err
	}

	cfg, source, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# source: %s\n", source)
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
