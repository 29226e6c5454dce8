package client

import (
	"errors"
	"time"

	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/protocol"
)

// Sender writes messages to the server. *Conn implements it.
type Sender interface {
	Send(m protocol.Message) error
}

// Game is one player's or spectator's session: it feeds server messages
// into a Reconciler, answers pings, asks for a resync after a gap and
// sends shield inputs at most every InputEvery ticks.
type Game struct {
	out        Sender
	rec        *Reconciler
	inputEvery int

	playing  bool
	cell     hex.Cell
	joinTick int
	died     *protocol.Died
	lastErr  *protocol.Error
	resyncs  int

	angle, momentum float64
	dirty           bool
	lastInput       int
}

// NewGame returns a session writing to out. inputEvery below 1 sends an
// input on every tick that has one.
func NewGame(out Sender, cfg Config, inputEvery int) *Game {
	return &Game{
		out:        out,
		rec:        NewReconciler(cfg),
		inputEvery: max(inputEvery, 1),
		lastInput:  -1 << 31,
	}
}

// Join asks for a cell.
func (g *Game) Join(name string) error {
	g.died, g.lastErr = nil, nil
	return g.out.Send(protocol.Join{Name: name})
}

// Watch subscribes without playing.
func (g *Game) Watch() error {
	return g.out.Send(protocol.Watch{})
}

// Handle processes one server message.
func (g *Game) Handle(m protocol.Message) error {
	switch msg := m.(type) {
	case protocol.Joined:
		g.playing = true
		g.cell, g.joinTick = msg.Cell, msg.JoinTick
		g.rec.SetOwnCell(msg.Cell)
	case protocol.GameState:
		g.rec.Reset(msg.Tick, msg.State())
	case protocol.Delta:
		if err := g.rec.Receive(msg); errors.Is(err, ErrDesync) {
			g.resyncs++
			return g.out.Send(protocol.Resync{})
		}
	case protocol.Ping:
		return g.out.Send(protocol.Pong(msg))
	case protocol.Died:
		g.playing = false
		g.died = &msg
		g.rec.ClearOwnCell()
	case protocol.Error:
		g.lastErr = &msg
	}
	return nil
}

// Step advances the display by elapsed and sends a pending input when
// one is due.
func (g *Game) Step(elapsed time.Duration) error {
	g.rec.Advance(elapsed)
	if !g.playing || !g.dirty || !g.rec.Ready() {
		return nil
	}
	tick := g.rec.Tick()
	if tick-g.lastInput < g.inputEvery {
		return nil
	}
	angle, momentum := g.angle, g.momentum
	g.dirty = false
	g.lastInput = tick
	return g.out.Send(protocol.Input{Tick: tick, Angle: &angle, Momentum: &momentum})
}

// Aim points the shield at angle.
func (g *Game) Aim(angle float64) {
	if p := g.rec.Own(); p != nil {
		g.momentum = p.ShieldMomentum
	}
	g.setShield(angle, g.momentum)
}

// Turn sets the shield's angular momentum.
func (g *Game) Turn(momentum float64) {
	angle := g.angle
	if p := g.rec.Own(); p != nil {
		angle = p.ShieldAngle
	}
	g.setShield(angle, momentum)
}

func (g *Game) setShield(angle, momentum float64) {
	if !g.playing {
		return
	}
	g.angle, g.momentum = hex.WrapAngle(angle), momentum
	g.dirty = true
	g.rec.SetShield(g.angle, g.momentum)
}

// Reconciler exposes the local arena.
func (g *Game) Reconciler() *Reconciler { return g.rec }

// Playing reports whether the session controls a living player.
func (g *Game) Playing() bool { return g.playing }

// Cell returns the played cell.
func (g *Game) Cell() hex.Cell { return g.cell }

// SurvivedTicks is the local estimate of ticks alive so far.
func (g *Game) SurvivedTicks() int {
	if g.died != nil {
		return g.died.SurvivalTicks
	}
	if !g.playing {
		return 0
	}
	return max(g.rec.Tick()-g.joinTick, 0)
}

// Died returns the death notice, nil while alive.
func (g *Game) Died() *protocol.Died { return g.died }

// LastError returns the newest error the server reported.
func (g *Game) LastError() *protocol.Error { return g.lastErr }

// Resyncs counts full states requested after stream gaps.
func (g *Game) Resyncs() int { return g.resyncs }
