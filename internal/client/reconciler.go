// Package client mirrors the arena on the client side: a reconciler that
// replays the server's deltas through the shared simulation, and a
// network client that feeds it.
package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/hexarena/internal/delta"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// ErrDesync is returned when a delta does not fit the expected stream.
// The client must discard its state and ask for a full one.
var ErrDesync = errors.New("client: delta stream out of sync")

// Config sets the client's timing. TickTime and DeltaEvery must match the
// server.
type Config struct {
	TickTime     time.Duration
	DeltaEvery   int
	MaxLeadTicks int // how far the view may run ahead of confirmed deltas
}

// DefaultConfig matches the default server loop.
func DefaultConfig() Config {
	return Config{
		TickTime:     20 * time.Millisecond,
		DeltaEvery:   5,
		MaxLeadTicks: 10,
	}
}

// Reconciler holds the confirmed arena, which advances only through
// ticks the server has accounted for, and a view that may dead-reckon
// ahead of it. A Reconciler is not safe for concurrent use.
type Reconciler struct {
	cfg Config

	confirmed *sim.State
	tick      int // next tick the confirmed state will integrate
	lastDelta int // newest tick covered by the stream
	pending   []protocol.Delta
	desync    bool

	view        *sim.State
	displayTick int
	buffer      time.Duration

	own         hex.Cell
	hasOwn      bool
	angle       float64
	moment      float64
	localShield bool
}

// NewReconciler returns an empty reconciler waiting for a full state.
func NewReconciler(cfg Config) *Reconciler {
	cfg.DeltaEvery = max(cfg.DeltaEvery, 1)
	cfg.MaxLeadTicks = max(cfg.MaxLeadTicks, 0)
	if cfg.TickTime <= 0 {
		cfg.TickTime = DefaultConfig().TickTime
	}
	return &Reconciler{cfg: cfg, desync: true}
}

// Ready reports whether a full state has been loaded since the last
// desync.
func (r *Reconciler) Ready() bool {
	return r.confirmed != nil && !r.desync
}

// SetOwnCell names the cell this client plays.
func (r *Reconciler) SetOwnCell(c hex.Cell) {
	r.own, r.hasOwn = c, true
	r.localShield = false
}

// ClearOwnCell stops treating any cell as local.
func (r *Reconciler) ClearOwnCell() {
	r.hasOwn, r.localShield = false, false
}

// Reset loads a full state. The state is taken as of tick, before that
// tick is integrated.
func (r *Reconciler) Reset(tick int, s *sim.State) {
	r.confirmed = s.Clone()
	r.pending = r.pending[:0]
	r.lastDelta = tick
	r.tick = tick
	r.desync = false
	r.overrideShield(r.confirmed)
	r.displayTick = tick + 1
	r.buffer = 0
	r.integrate()
	r.rebuildView()
}

// Receive queues a delta. A repeat of the newest delta is ignored. A
// delta older than the stream, one whose predecessor never arrived, or
// one that skips past the next tick at which the server always sends,
// returns ErrDesync.
func (r *Reconciler) Receive(d protocol.Delta) error {
	if r.confirmed == nil || r.desync {
		return nil
	}
	if d.Tick == r.lastDelta {
		return nil
	}
	if d.Tick < r.lastDelta {
		r.desync = true
		return fmt.Errorf("%w: delta for tick %d after tick %d", ErrDesync, d.Tick, r.lastDelta)
	}
	if d.Prev > r.lastDelta {
		r.desync = true
		return fmt.Errorf("%w: delta for tick %d, missed tick %d", ErrDesync, d.Tick, d.Prev)
	}
	if boundary := r.nextBoundary(); d.Tick > boundary {
		r.desync = true
		return fmt.Errorf("%w: delta for tick %d, missed tick %d", ErrDesync, d.Tick, boundary)
	}
	r.pending = append(r.pending, d)
	r.lastDelta = d.Tick
	return nil
}

// nextBoundary is the first tick after lastDelta at which the server
// sends a delta even when nothing changed.
func (r *Reconciler) nextBoundary() int {
	k := r.cfg.DeltaEvery
	return (r.lastDelta/k + 1) * k
}

// Advance moves the display forward by elapsed wall time and returns the
// number of display ticks that passed. The confirmed state follows as
// far as the received deltas allow; the view dead-reckons past it up to
// MaxLeadTicks.
func (r *Reconciler) Advance(elapsed time.Duration) int {
	if !r.Ready() {
		return 0
	}
	r.buffer += elapsed
	n := int(r.buffer / r.cfg.TickTime)
	r.buffer -= time.Duration(n) * r.cfg.TickTime
	r.displayTick += n

	covered := r.lastDelta + 1
	if covered-r.displayTick > r.cfg.DeltaEvery {
		r.displayTick = covered - r.cfg.DeltaEvery/2
	}
	if lead := covered + r.cfg.MaxLeadTicks; r.displayTick > lead {
		r.displayTick = lead
		r.buffer = 0
	}

	r.integrate()
	r.rebuildView()
	return n
}

// integrate ticks the confirmed state through every covered tick up to
// the display tick, applying each delta at its tick.
func (r *Reconciler) integrate() {
	target := min(r.lastDelta+1, r.displayTick)
	for r.tick < target {
		for len(r.pending) > 0 && r.pending[0].Tick <= r.tick {
			d := r.pending[0]
			r.pending = r.pending[1:]
			if d.Tick == r.tick {
				delta.Apply(r.confirmed, r.filter(d.Changes))
				r.overrideShield(r.confirmed)
			}
		}
		r.confirmed.Tick()
		r.tick++
		r.followShield()
	}
}

func (r *Reconciler) rebuildView() {
	r.view = r.confirmed.Clone()
	for t := r.tick; t < r.displayTick; t++ {
		r.view.Tick()
	}
}

// filter drops the server's echo of the local shield.
func (r *Reconciler) filter(changes []delta.Change) []delta.Change {
	if !r.hasOwn || !r.localShield {
		return changes
	}
	return delta.Without(changes, r.own)
}

// SetShield drives the local player's shield. From then on the server's
// shield records for the own cell are ignored.
func (r *Reconciler) SetShield(angle, momentum float64) {
	r.angle, r.moment = hex.WrapAngle(angle), momentum
	r.localShield = true
	if r.confirmed != nil {
		r.overrideShield(r.confirmed)
	}
	if r.view != nil {
		r.overrideShield(r.view)
	}
}

func (r *Reconciler) overrideShield(s *sim.State) {
	if !r.hasOwn || !r.localShield {
		return
	}
	if p := s.PlayerAt(r.own); p != nil {
		p.ShieldAngle, p.ShieldMomentum = r.angle, r.moment
	}
}

// followShield keeps the local shield in step with the momentum the
// simulation applied.
func (r *Reconciler) followShield() {
	if !r.hasOwn || !r.localShield {
		return
	}
	if p := r.confirmed.PlayerAt(r.own); p != nil {
		r.angle = p.ShieldAngle
	}
}

// View returns the state to draw. It must not be modified.
func (r *Reconciler) View() *sim.State {
	return r.view
}

// Confirmed returns the state built from server records only.
func (r *Reconciler) Confirmed() *sim.State {
	return r.confirmed
}

// Tick is the display tick, used to tag inputs.
func (r *Reconciler) Tick() int {
	return r.displayTick
}

// ConfirmedTick is the next tick the confirmed state will integrate.
func (r *Reconciler) ConfirmedTick() int {
	return r.tick
}

// Interpolation is the fraction of a tick elapsed since the display tick.
func (r *Reconciler) Interpolation() float64 {
	return float64(r.buffer) / float64(r.cfg.TickTime)
}

// Own returns the local player, nil before joining or after removal.
func (r *Reconciler) Own() *sim.Player {
	if !r.hasOwn || r.view == nil {
		return nil
	}
	return r.view.PlayerAt(r.own)
}
