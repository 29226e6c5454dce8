// hexarena is a multiplayer hexagonal arena: players guard their cell with
// a rotating shield while balls bounce between the zones.
//
// Usage:
//
//	hexarena serve           - Run the arena server (WebSocket, KCP, SSH spectator)
//	hexarena play [name]     - Join the arena in the terminal
//	hexarena watch           - Watch the arena without playing
//	hexarena bot [name]      - Connect automatic players
//	hexarena scores          - Show the longest survivals
//	hexarena config          - Print the effective configuration
//
// Global flags:
//
//	--config <path>     - Configuration file (YAML or TOML)
//	--db <path>         - Scores database path
//	--log-level <lvl>   - debug, info, warn or error
//	--seed <value>      - RNG seed for the arena
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/hexarena/internal/config"
)

var (
	// Global flags
	flagConfig   string
	flagDBPath   string
	flagLogLevel string
	flagSeed     int64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hexarena",
	Short: "hexarena - a multiplayer shield arena on a hexagonal grid",
	Long: `hexarena runs an authoritative arena server and a terminal client.

Every player owns one hexagonal cell and turns a shield to keep the balls
away. Health drops on every hit; the longest survivals make the high-score
table.

Examples:
  hexarena serve
  hexarena serve --ssh :23234
  hexarena play ada
  hexarena play ada --network kcp --addr localhost:8081
  hexarena watch
  hexarena bot rover --count 4
  hexarena scores`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a hexarena.yaml or hexarena.toml")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to scores database (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "RNG seed (0 = random based on time)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(scoresCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (config.Config, string, error) {
	cfg, source, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, "", err
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = flagDBPath
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagSeed != 0 {
		cfg.Simulation.Seed = flagSeed
	}
	return cfg, source, nil
}

// newLogger returns a stderr logger at the configured level.
func newLogger(cfg config.Config, prefix string) (*log.Logger, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logger.SetLevel(level)
	return logger, nil
}
