package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/hexarena/internal/loop"
	"github.com/vovakirdan/hexarena/internal/platform/tui"
	"github.com/vovakirdan/hexarena/internal/storage"
	"github.com/vovakirdan/hexarena/internal/transport"
)

var (
	flagWSAddr      string
	flagKCPAddr     string
	flagSSHAddr     string
	flagHostKey     string
	flagIdleTimeout int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the arena server",
	Long: `Run the authoritative arena loop and accept players.

Listeners:
  WebSocket  --ws   (JSON text frames or binary frames)
  KCP        --kcp  (length-prefixed frames over reliable UDP; "" disables)
  SSH        --ssh  (terminal spectators; disabled unless set)

Every death or disconnect is recorded in the scores database.

Examples:
  hexarena serve
  hexarena serve --ws :9000 --kcp ""
  hexarena serve --ssh :23234 --host-key ./host_key
  hexarena serve --config ./configs/hexarena.toml --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagWSAddr, "ws", "", "WebSocket address (default from config)")
	serveCmd.Flags().StringVar(&flagKCPAddr, "kcp", "", "KCP address (default from config)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH spectator address (host:port)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 30, "SSH idle timeout in minutes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, source, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("ws") {
		cfg.Server.WebSocketAddr = flagWSAddr
	}
	if flags.Changed("kcp") {
		cfg.Server.KCPAddr = flagKCPAddr
	}
	if flags.Changed("ssh") {
		cfg.Server.SSHAddr = flagSSHAddr
	}
	if flags.Changed("host-key") {
		cfg.Server.HostKeyPath = flagHostKey
	}

	logger, err := newLogger(cfg, "hexarena")
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", "source", source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	arena := loop.New(cfg.Loop(), logger.WithPrefix("loop"))

	store, err := storage.Open(cfg.Storage.DBPath, storage.WithTickTime(cfg.TickTime()))
	if err != nil {
		// Play on without high scores.
		logger.Warn("could not open scores database", "path", cfg.Storage.DBPath, "error", err)
		store = nil
	} else {
		defer store.Close()
		arena.SetScoreSink(store)
	}

	server := transport.NewServer(arena, cfg.Transport(), logger.WithPrefix("transport"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return arena.Run(ctx) })
	g.Go(func() error {
		return server.ServeWebSocket(ctx, cfg.Server.WebSocketAddr, cfg.Server.WebSocketPath)
	})
	if cfg.Server.KCPAddr != "" {
		g.Go(func() error { return server.ServeKCP(ctx, cfg.Server.KCPAddr) })
	}
	if cfg.Server.SSHAddr != "" {
		sshCfg := tui.DefaultSSHServerConfig()
		sshCfg.Address = cfg.Server.SSHAddr
		sshCfg.HostKeyPath = cfg.Server.HostKeyPath
		sshCfg.IdleTimeout = time.Duration(flagIdleTimeout) * time.Minute
		sshCfg.Model = tui.Options{
			Reconciler: cfg.Reconciler(),
			FrameRate:  cfg.Client.FrameRate,
		}
		spectators, err := tui.NewSSHServer(sshCfg, arena, store, logger.WithPrefix("ssh"))
		if err != nil {
			return err
		}
		g.Go(func() error { return spectators.ListenAndServe(ctx) })
	}

	err = g.Wait()
	server.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("server stopped", "connections", server.Connections())
		return nil
	}
	return err
}
