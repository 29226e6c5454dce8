package client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// ErrConnClosed is returned by Autopilot.Run when the server goes away.
var ErrConnClosed = errors.New("client: connection closed")

// Stream is a two-way connection to the arena. *Conn implements it.
type Stream interface {
	Sender
	Messages() <-chan protocol.Message
	Done() <-chan struct{}
}

// AutopilotConfig tunes an Autopilot.
type AutopilotConfig struct {
	Name        string
	AimEvery    time.Duration // how often the shield is re-aimed
	RejoinAfter time.Duration // pause between a death and the next join
	FrameTime   time.Duration // Run's step interval
}

// DefaultAutopilotConfig returns the pacing of the browser bot.
func DefaultAutopilotConfig(name string) AutopilotConfig {
	return AutopilotConfig{
		Name:        name,
		AimEvery:    200 * time.Millisecond,
		RejoinAfter: 5 * time.Second,
		FrameTime:   time.Second / 30,
	}
}

// Autopilot plays a Game without a human: it points the shield at the
// first ball inside its own cell and joins again after dying or being
// turned away.
type Autopilot struct {
	game   *Game
	cfg    AutopilotConfig
	logger *log.Logger

	sinceAim  time.Duration
	sinceOut  time.Duration
	reported  *protocol.Died
	runs      int
	bestTicks int
}

// NewAutopilot drives game, which must write to the Stream later passed
// to Run. logger may be nil.
func NewAutopilot(game *Game, cfg AutopilotConfig, logger *log.Logger) *Autopilot {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Autopilot{game: game, cfg: cfg, logger: logger}
}

// Target returns the angle from the player in cell to the first ball
// inside that cell.
func Target(s *sim.State, cell hex.Cell) (float64, bool) {
	if s == nil {
		return 0, false
	}
	p := s.PlayerAt(cell)
	if p == nil {
		return 0, false
	}
	for i := range s.BallSlots() {
		b := s.Ball(i)
		if b == nil || hex.PositionToCell(b.Position) != cell {
			continue
		}
		return b.Position.Sub(p.Position).Angle(), true
	}
	return 0, false
}

// Step advances the game by elapsed, re-aiming or rejoining when due.
func (a *Autopilot) Step(elapsed time.Duration) error {
	g := a.game
	if g.Playing() {
		a.sinceOut = 0
		a.sinceAim += elapsed
		if a.sinceAim >= a.cfg.AimEvery {
			a.sinceAim = 0
			if angle, ok := Target(g.Reconciler().View(), g.Cell()); ok {
				g.Aim(angle)
			}
		}
		return g.Step(elapsed)
	}

	if err := g.Step(elapsed); err != nil {
		return err
	}
	if d := g.Died(); d != nil && d != a.reported {
		a.reported = d
		a.runs++
		a.bestTicks = max(a.bestTicks, d.SurvivalTicks)
		a.logger.Info("died", "name", a.cfg.Name, "ticks", d.SurvivalTicks, "runs", a.runs)
	}
	if g.Died() == nil && g.LastError() == nil {
		// Waiting for the first Joined.
		return nil
	}
	a.sinceOut += elapsed
	if a.sinceOut < a.cfg.RejoinAfter {
		return nil
	}
	a.sinceOut, a.sinceAim = 0, 0
	a.logger.Debug("rejoining", "name", a.cfg.Name)
	return g.Join(a.cfg.Name)
}

// Runs counts the deaths seen so far.
func (a *Autopilot) Runs() int { return a.runs }

// BestTicks is the longest survival seen so far.
func (a *Autopilot) BestTicks() int { return a.bestTicks }

// Run joins through conn and plays until ctx is cancelled or the
// connection ends.
func (a *Autopilot) Run(ctx context.Context, conn Stream) error {
	if err := a.game.Join(a.cfg.Name); err != nil {
		return err
	}
	frame := a.cfg.FrameTime
	if frame <= 0 {
		frame = time.Second / 30
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-conn.Done():
			return ErrConnClosed
		case m, ok := <-conn.Messages():
			if !ok {
				return ErrConnClosed
			}
			if err := a.game.Handle(m); err != nil {
				return err
			}
		case now := <-ticker.C:
			if err := a.Step(now.Sub(last)); err != nil {
				return err
			}
			last = now
		}
	}
}
