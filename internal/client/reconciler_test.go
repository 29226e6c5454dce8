package client

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/vovakirdan/hexarena/internal/delta"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/protocol"
	"github.com/vovakirdan/hexarena/internal/sim"
)

const tickTime = 20 * time.Millisecond

func testConfig() Config {
	return Config{TickTime: tickTime, DeltaEvery: 5, MaxLeadTicks: 10}
}

// arena is a minimal authoritative side: it applies scheduled records,
// emits deltas on the usual cadence and ticks.
type arena struct {
	state  *sim.State
	tick   int
	deltas []protocol.Delta
}

func newArena(t *testing.T) (*arena, protocol.GameState) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	s := sim.NewState(sim.DefaultParams())
	for _, name := range []string{"ada", "bob", "cy"} {
		c, err := s.FindJoinCell()
		if err != nil {
			t.Fatal(err)
		}
		p := sim.NewPlayer(sim.PlayerSpec{Name: name, Cell: c})
		s.AddPlayer(c, p)
		s.AddBall(sim.NewBall(p.Position.Add(hex.Vec{X: 300}), nil, rng))
	}
	a := &arena{state: s}
	g := protocol.NewGameState(0, s)
	a.state.Tick()
	a.tick = 1
	return a, g
}

// neighbour returns some occupied cell other than the centre.
func (a *arena) neighbour(t *testing.T) hex.Cell {
	t.Helper()
	for d := range 6 {
		if c := hex.NeighborCell(hex.Center, d); a.state.PlayerAt(c) != nil {
			return c
		}
	}
	t.Fatal("no player next to the centre")
	return hex.Cell{}
}

func (a *arena) run(until int, script map[int][]delta.Change) {
	for ; a.tick <= until; a.tick++ {
		changes := script[a.tick]
		delta.Apply(a.state, changes)
		if len(changes) > 0 || a.tick%5 == 0 {
			a.deltas = append(a.deltas, protocol.Delta{Tick: a.tick, Changes: changes})
		}
		a.state.Tick()
	}
}

func TestConfirmedFollowsServer(t *testing.T) {
	a, g := newArena(t)
	bob := a.neighbour(t)
	a.run(20, map[int][]delta.Change{
		7:  {delta.NewHealth(hex.Center, 40)},
		12: {delta.NewShieldMomentum(bob, 1), delta.NewShieldAngle(hex.Center, 2)},
		13: {{Kind: delta.BallRemoved, Index: 1}},
	})

	r := NewReconciler(testConfig())
	r.Reset(g.Tick, g.State())
	for _, d := range a.deltas {
		if err := r.Receive(d); err != nil {
			t.Fatalf("Receive(%d) failed: %v", d.Tick, err)
		}
	}
	if n := r.Advance(20 * tickTime); n != 20 {
		t.Errorf("Advance() = %d ticks, expected 20", n)
	}
	if r.ConfirmedTick() != a.tick {
		t.Fatalf("confirmed at tick %d, server at %d", r.ConfirmedTick(), a.tick)
	}
	if !sim.Equal(r.Confirmed(), a.state) {
		t.Error("confirmed state differs from the server")
	}
	if !sim.Equal(r.View(), a.state) {
		t.Error("view differs from the server when nothing is predicted")
	}
}

func TestReceiveOrdering(t *testing.T) {
	tests := []struct {
		name   string
		ticks  []int
		desync bool
	}{
		{"cadence", []int{5, 10, 15}, false},
		{"extra deltas between boundaries", []int{2, 3, 5, 9, 10}, false},
		{"duplicate ignored", []int{5, 5, 10}, false},
		{"older than stream", []int{5, 3}, true},
		{"boundary skipped", []int{5, 11}, true},
		{"first boundary skipped", []int{6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, g := newArena(t)
			r := NewReconciler(testConfig())
			r.Reset(g.Tick, g.State())
			var err error
			for _, tick := range tt.ticks {
				if err = r.Receive(protocol.Delta{Tick: tick}); err != nil {
					break
				}
			}
			if got := errors.Is(err, ErrDesync); got != tt.desync {
				t.Errorf("desync = %v (%v), expected %v", got, err, tt.desync)
			}
			if r.Ready() == tt.desync {
				t.Errorf("Ready() = %v after desync = %v", r.Ready(), tt.desync)
			}
		})
	}
}

func TestReceiveChecksPreviousTick(t *testing.T) {
	tests := []struct {
		name   string
		deltas []protocol.Delta
		desync bool
	}{
		{"chained", []protocol.Delta{{Tick: 2, Prev: 0}, {Tick: 3, Prev: 2}, {Tick: 5, Prev: 3}}, false},
		{"first after a full state", []protocol.Delta{{Tick: 4, Prev: 0}}, false},
		{"lost between boundaries", []protocol.Delta{{Tick: 2, Prev: 0}, {Tick: 4, Prev: 3}}, true},
		{"lost before the first", []protocol.Delta{{Tick: 3, Prev: 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, g := newArena(t)
			r := NewReconciler(testConfig())
			r.Reset(g.Tick, g.State())
			var err error
			for _, d := range tt.deltas {
				if err = r.Receive(d); err != nil {
					break
				}
			}
			if got := errors.Is(err, ErrDesync); got != tt.desync {
				t.Errorf("desync = %v (%v), expected %v", got, err, tt.desync)
			}
		})
	}
}

func TestDesyncStopsUntilReset(t *testing.T) {
	a, g := newArena(t)
	r := NewReconciler(testConfig())
	r.Reset(g.Tick, g.State())
	if err := r.Receive(protocol.Delta{Tick: 12}); !errors.Is(err, ErrDesync) {
		t.Fatalf("Receive() = %v, expected ErrDesync", err)
	}
	if err := r.Receive(protocol.Delta{Tick: 13}); err != nil {
		t.Errorf("Receive() while desynced = %v, expected silence", err)
	}
	if n := r.Advance(time.Second); n != 0 {
		t.Errorf("Advance() while desynced = %d", n)
	}

	a.run(12, nil)
	r.Reset(a.tick, a.state)
	if !r.Ready() || r.ConfirmedTick() != a.tick+1 {
		t.Errorf("after Reset: ready %v, confirmed tick %d", r.Ready(), r.ConfirmedTick())
	}
}

func TestViewLeadIsCapped(t *testing.T) {
	a, g := newArena(t)
	r := NewReconciler(testConfig())
	r.Reset(g.Tick, g.State())

	r.Advance(time.Second)
	if r.ConfirmedTick() != 1 {
		t.Errorf("confirmed tick %d without deltas, expected 1", r.ConfirmedTick())
	}
	if r.Tick() != 11 {
		t.Errorf("display tick %d, expected the lead cap 11", r.Tick())
	}
	if r.Interpolation() != 0 {
		t.Errorf("Interpolation() = %v after hitting the cap", r.Interpolation())
	}
	for range 10 {
		a.state.Tick()
	}
	if !sim.Equal(r.View(), a.state) {
		t.Error("view is not the confirmed state dead-reckoned ten ticks")
	}
}

func TestCatchUpWhenBehind(t *testing.T) {
	a, g := newArena(t)
	a.run(20, nil)
	r := NewReconciler(testConfig())
	r.Reset(g.Tick, g.State())
	for _, d := range a.deltas {
		r.Receive(d)
	}

	r.Advance(tickTime)
	if r.Tick() != 19 {
		t.Errorf("display tick %d, expected to jump to 19", r.Tick())
	}
	if r.ConfirmedTick() != 19 {
		t.Errorf("confirmed tick %d, expected 19", r.ConfirmedTick())
	}
}

func TestInterpolation(t *testing.T) {
	_, g := newArena(t)
	r := NewReconciler(testConfig())
	r.Reset(g.Tick, g.State())
	r.Receive(protocol.Delta{Tick: 5})

	if n := r.Advance(tickTime + tickTime/2); n != 1 {
		t.Errorf("Advance() = %d, expected 1", n)
	}
	if got := r.Interpolation(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Interpolation() = %v, expected 0.5", got)
	}
}

func TestOwnShieldIsLocal(t *testing.T) {
	a, g := newArena(t)
	other := a.neighbour(t)
	a.run(5, map[int][]delta.Change{
		3: {delta.NewShieldAngle(hex.Center, -2), delta.NewShieldAngle(other, 0.5)},
	})

	r := NewReconciler(testConfig())
	r.Reset(g.Tick, g.State())
	r.SetOwnCell(hex.Center)
	r.SetShield(1, 0)
	for _, d := range a.deltas {
		r.Receive(d)
	}
	r.Advance(5 * tickTime)

	if got := r.Confirmed().PlayerAt(hex.Center).ShieldAngle; got != 1 {
		t.Errorf("own shield = %v, expected the local angle 1", got)
	}
	if got := r.Own().ShieldAngle; got != 1 {
		t.Errorf("Own().ShieldAngle = %v", got)
	}
	if got, want := r.Confirmed().PlayerAt(other).ShieldAngle, a.state.PlayerAt(other).ShieldAngle; got != want {
		t.Errorf("other shield = %v, expected the server's %v", got, want)
	}
}

func TestOwnShieldTurnsWithMomentum(t *testing.T) {
	_, g := newArena(t)
	r := NewReconciler(testConfig())
	r.Reset(g.Tick, g.State())
	r.SetOwnCell(hex.Center)
	r.SetShield(0, 1)
	r.Receive(protocol.Delta{Tick: 5})
	r.Advance(4 * tickTime)

	inc := sim.DefaultParams().ShieldIncrement
	if got := r.Confirmed().PlayerAt(hex.Center).ShieldAngle; math.Abs(got-4*inc) > 1e-9 {
		t.Errorf("shield angle %v after 4 ticks, expected %v", got, 4*inc)
	}
}
