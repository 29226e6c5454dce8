package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"

	"github.com/vovakirdan/hexarena/internal/storage"
	"github.com/vovakirdan/hexarena/internal/transport"
)

// SSHServerConfig holds configuration for the SSH spectator.
type SSHServerConfig struct {
	// Address is the host:port to listen on (e.g., ":23234").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.hexarena/host_key.
	HostKeyPath string

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration

	// Model configures each spectator's screen. Name is ignored.
	Model Options
}

// DefaultSSHServerConfig returns a config with sensible defaults.
func DefaultSSHServerConfig() SSHServerConfig {
	return SSHServerConfig{
		Address:     ":23234",
		IdleTimeout: 30 * time.Minute,
	}
}

type linkKey struct{}

// SSHServer lets anyone with an SSH client watch the arena.
type SSHServer struct {
	config SSHServerConfig
	server *ssh.Server
	arena  transport.Sink
	logger *log.Logger
}

// NewSSHServer creates a spectator server feeding from arena. store may be
// nil.
func NewSSHServer(cfg SSHServerConfig, arena transport.Sink, store *storage.Store, logger *log.Logger) (*SSHServer, error) {
	cfg.Model.Name = ""
	cfg.Model.Store = store
	srv := &SSHServer{
		config: cfg,
		arena:  arena,
		logger: logger,
	}

	// Resolve host key path
	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot get home directory: %w", err)
		}
		hostKeyPath = filepath.Join(home, ".hexarena", "host_key")
	}

	// Ensure host key directory exists
	if err := os.MkdirAll(filepath.Dir(hostKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", err)
	}

	server, err := wish.NewServer(
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.linkMiddleware,
			activeterm.Middleware(),
			srv.loggingMiddleware,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// linkMiddleware joins the arena as a spectator for the lifetime of the
// SSH session.
func (s *SSHServer) linkMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		link := NewLoopLink(s.arena, 0)
		defer link.Close()
		sess.Context().SetValue(linkKey{}, link)
		next(sess)
	}
}

// teaHandler creates a Bubble Tea program for each SSH session.
func (s *SSHServer) teaHandler(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	link, ok := sess.Context().Value(linkKey{}).(*LoopLink)
	if !ok {
		s.logger.Error("session without arena link", "user", sess.User())
		return nil, nil
	}
	pty, _, _ := sess.Pty()

	opts := s.config.Model
	opts.Renderer = bubbletea.MakeRenderer(sess)
	model := NewModel(link, opts)
	model.width, model.height = pty.Window.Width, pty.Window.Height

	return model, []tea.ProgramOption{tea.WithAltScreen()}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		s.logger.Info("spectator connected",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
		next(sess)
		s.logger.Info("spectator left",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *SSHServer) ListenAndServe(ctx context.Context) error {
	s.logger.Info("starting SSH spectator", "address", s.config.Address)

	errc := make(chan error, 1)
	go func() {
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, ssh.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Address
}
