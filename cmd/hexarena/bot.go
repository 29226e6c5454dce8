package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/hexarena/internal/client"
	"github.com/vovakirdan/hexarena/internal/config"
	"github.com/vovakirdan/hexarena/internal/protocol"
)

var flagBotCount int

var botCmd = &cobra.Command{
	Use:   "bot [name]",
	Short: "Fill the arena with computer players",
	Long: `Connect one or more automatic players to an arena server.

Each bot points its shield at the first ball inside its cell and joins
again a few seconds after dying. With --count above 1 the bots are
named name-1, name-2 and so on.

Examples:
  hexarena bot
  hexarena bot rover --count 4
  hexarena bot --network kcp --addr localhost:8081 --codec binary`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBot,
}

func init() {
	botCmd.Flags().StringVar(&flagNetwork, "network", "", "ws or kcp (default from config)")
	botCmd.Flags().StringVar(&flagAddr, "addr", "", "Server address: ws:// URL or host:port for kcp")
	botCmd.Flags().StringVar(&flagCodec, "codec", "", "json or binary (default from config)")
	botCmd.Flags().IntVarP(&flagBotCount, "count", "n", 1, "Number of bots")
}

// botNames expands base into count distinct names.
func botNames(base string, count int) []string {
	if count <= 1 {
		return []string{base}
	}
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%d", base, i+1)
	}
	return names
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	applyClientFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if flagBotCount < 1 {
		return errors.New("--count must be at least 1")
	}
	base := "bot"
	if len(args) > 0 {
		base = args[0]
	}

	logger, err := newLogger(cfg, "bot")
	if err != nil {
		return err
	}
	codec, err := protocol.Lookup(cfg.Client.Codec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range botNames(base, flagBotCount) {
		g.Go(func() error {
			return runOneBot(ctx, cfg, codec, name, logger.With("bot", name))
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runOneBot(ctx context.Context, cfg config.Config, codec protocol.Codec, name string, logger *log.Logger) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := client.Dial(dialCtx, cfg.Client.Network, cfg.Client.Address, codec)
	cancel()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer conn.Close()
	logger.Info("connected", "addr", cfg.Client.Address)

	game := client.NewGame(conn, cfg.Reconciler(), cfg.Client.InputEvery)
	pilot := client.NewAutopilot(game, client.DefaultAutopilotConfig(name), logger)
	err = pilot.Run(ctx, conn)
	logger.Info("stopped", "runs", pilot.Runs(), "best", time.Duration(pilot.BestTicks())*cfg.TickTime())
	if errors.Is(err, client.ErrConnClosed) {
		if cerr := conn.Err(); cerr != nil {
			return fmt.Errorf("%s: %w: %v", name, err, cerr)
		}
	}
	return err
}
