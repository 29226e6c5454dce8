package delta

import (
	"math/rand"
	"testing"

	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// evolve builds a reachable arena: joins, ball spawns, deaths and ticks.
func evolve(t *testing.T, rng *rand.Rand, s *sim.State, steps int) {
	t.Helper()
	for range steps {
		switch rng.Intn(6) {
		case 0:
			c, err := s.FindJoinCell()
			if err != nil {
				t.Fatalf("FindJoinCell() failed: %v", err)
			}
			p := sim.NewPlayer(sim.PlayerSpec{Name: "p", Cell: c, JoinTick: rng.Int()})
			s.AddPlayer(c, p)
			if s.BallCount < s.Params().BallQuota(s.PlayerCount) {
				s.AddBall(sim.NewBall(p.Position.Add(hex.Vec{X: 300}), nil, rng))
			}
		case 1:
			s.EachPlayer(func(_ hex.Cell, p *sim.Player) {
				if rng.Intn(8) == 0 {
					p.Health = 0
				}
			})
		case 2:
			s.EachPlayer(func(_ hex.Cell, p *sim.Player) {
				p.ShieldMomentum = float64(rng.Intn(3) - 1)
			})
		default:
			s.Tick()
		}
	}
}

func TestDiffRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := range 20 {
		a := sim.NewState(sim.DefaultParams())
		evolve(t, rng, a, 30)
		b := a.Clone()
		evolve(t, rng, b, 40)

		changes := Diff(a, b)
		got := a.Clone()
		Apply(got, changes)
		if !sim.Equal(got, b) {
			t.Fatalf("trial %d: apply(A, diff(A, B)) != B", trial)
		}
		if rest := Diff(a, got); len(rest) != len(changes) {
			t.Fatalf("trial %d: diff not stable", trial)
		}
		if rest := Diff(got, b); len(rest) != 0 {
			t.Fatalf("trial %d: %d records left after apply: %v", trial, len(rest), rest)
		}
	}
}

func TestDiffIdentical(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := sim.NewState(sim.DefaultParams())
	evolve(t, rng, s, 50)
	if changes := Diff(s, s.Clone()); len(changes) != 0 {
		t.Errorf("Diff of equal states = %v, expected none", changes)
	}
}

func TestApplyIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := sim.NewState(sim.DefaultParams())
	evolve(t, rng, a, 30)
	b := a.Clone()
	evolve(t, rng, b, 30)
	changes := Diff(a, b)

	once := a.Clone()
	Apply(once, changes)
	twice := once.Clone()
	Apply(twice, changes)
	if !sim.Equal(once, twice) {
		t.Error("re-applying a delta changed the state")
	}
}

func TestApplyMissingTargets(t *testing.T) {
	s := sim.NewState(sim.DefaultParams())
	changes := []Change{
		NewHealth(hex.Center, 10),
		NewShieldAngle(hex.Center, 1),
		{Kind: PlayerRemoved, Cell: hex.Center},
		{Kind: BallRemoved, Index: 3},
		{Kind: BallPositionChanged, Index: 0, Vec: hex.Vec{X: 1}},
		NewHealth(hex.Cell{Row: -1, Index: 0}, 10),
	}
	if n := Apply(s, changes); n != 0 {
		t.Errorf("Apply() hit %d targets in an empty arena", n)
	}
	if s.PlayerCount != 0 || s.BallCount != 0 {
		t.Error("empty arena changed")
	}
}

func TestReplacedPlayerIsReAdded(t *testing.T) {
	a := sim.NewState(sim.DefaultParams())
	a.AddPlayer(hex.Center, sim.NewPlayer(sim.PlayerSpec{Name: "old", Cell: hex.Center, JoinTick: 1}))
	b := sim.NewState(sim.DefaultParams())
	b.AddPlayer(hex.Center, sim.NewPlayer(sim.PlayerSpec{Name: "new", Cell: hex.Center, JoinTick: 9}))

	changes := Diff(a, b)
	if len(changes) != 2 || changes[0].Kind != PlayerRemoved || changes[1].Kind != PlayerAdded {
		t.Fatalf("Diff() = %v, expected remove then add", changes)
	}
	Apply(a, changes)
	if a.PlayerAt(hex.Center).Name != "new" || a.PlayerCount != 1 {
		t.Errorf("replacement not applied: %+v", a.PlayerAt(hex.Center))
	}
}

func TestAddedPlayerIsCopied(t *testing.T) {
	s := sim.NewState(sim.DefaultParams())
	p := sim.NewPlayer(sim.PlayerSpec{Name: "a", Cell: hex.Center})
	ch := NewPlayerAdded(hex.Center, p)
	Apply(s, []Change{ch})
	p.Health = 1
	ch.Player.Health = 2
	if s.PlayerAt(hex.Center).Health != sim.MaxHealth {
		t.Error("applied player aliases the record")
	}
}

func TestWithoutOwnShield(t *testing.T) {
	other := hex.NeighborCell(hex.Center, hex.Left)
	changes := []Change{
		NewShieldAngle(hex.Center, 1),
		NewShieldMomentum(hex.Center, 1),
		NewHealth(hex.Center, 50),
		NewShieldAngle(other, 2),
	}
	got := Without(changes, hex.Center)
	if len(got) != 2 || got[0].Kind != HealthChanged || got[1].Cell != other {
		t.Errorf("Without() = %v", got)
	}
}
