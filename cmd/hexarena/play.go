package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/hexarena/internal/client"
	"github.com/vovakirdan/hexarena/internal/config"
	"github.com/vovakirdan/hexarena/internal/platform/tui"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/storage"
)

var (
	flagNetwork string
	flagAddr    string
	flagCodec   string
)

var playCmd = &cobra.Command{
	Use:   "play [name]",
	Short: "Join the arena",
	Long: `Connect to an arena server and defend your cell.

Controls:
  Left/A, Right/D  - Spin the shield
  Down/S, Space    - Stop the shield
  Mouse            - Point the shield at the cursor
  Tab              - High scores (needs --db)
  R                - Rejoin after dying
  Q/Ctrl+C         - Quit

The name defaults to client.name from the config, then $USER.

Examples:
  hexarena play ada
  hexarena play ada --addr ws://arena.example.com:8080/ws
  hexarena play ada --network kcp --addr arena.example.com:8081 --codec binary`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the arena without playing",
	Long: `Connect to an arena server as a spectator.

Examples:
  hexarena watch
  hexarena watch --network kcp --addr localhost:8081`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runClient(cmd, "", false)
	},
}

func init() {
	for _, c := range []*cobra.Command{playCmd, watchCmd} {
		c.Flags().StringVar(&flagNetwork, "network", "", "ws or kcp (default from config)")
		c.Flags().StringVar(&flagAddr, "addr", "", "Server address: ws:// URL or host:port for kcp")
		c.Flags().StringVar(&flagCodec, "codec", "", "json or binary (default from config)")
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	return runClient(cmd, name, true)
}

// runClient joins the arena as name when play is set, otherwise watches.
func runClient(cmd *cobra.Command, name string, play bool) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("hexarena needs an interactive terminal")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	applyClientFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if play {
		name = playerName(name, cfg)
		if name == "" {
			return errors.New("no player name given")
		}
	}

	codec, err := protocol.Lookup(cfg.Client.Codec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := client.Dial(ctx, cfg.Client.Network, cfg.Client.Address, codec)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := tui.Options{
		Name:       name,
		Reconciler: cfg.Reconciler(),
		InputEvery: cfg.Client.InputEvery,
		FrameRate:  cfg.Client.FrameRate,
	}
	// The score overlay reads a local database only when one is named.
	if cmd.Flags().Changed("db") {
		store, err := storage.Open(cfg.Storage.DBPath, storage.WithTickTime(cfg.TickTime()))
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Store = store
	}

	final, err := tui.Run(conn, opts)
	if err != nil {
		return err
	}
	if d := final.Game().Died(); d != nil {
		secs := float64(d.SurvivalTicks) * cfg.TickTime().Seconds()
		fmt.Printf("%s survived %.2fs\n", name, secs)
	}
	if errors.Is(final.Err(), tui.ErrDisconnected) {
		if cerr := conn.Err(); cerr != nil {
			return fmt.Errorf("%w: %v", tui.ErrDisconnected, cerr)
		}
		return tui.ErrDisconnected
	}
	return nil
}

func applyClientFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("network") {
		cfg.Client.Network = flagNetwork
	}
	if flags.Changed("addr") {
		cfg.Client.Address = flagAddr
	}
	if flags.Changed("codec") {
		cfg.Client.Codec = flagCodec
	}
}

// playerName falls back to the configured name, then $USER.
func playerName(name string, cfg config.Config) string {
	if name != "" {
		return name
	}
	if cfg.Client.Name != "" {
		return cfg.Client.Name
	}
	return os.Getenv("USER")
}
