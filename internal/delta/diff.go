package delta

import (
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// Touched selects the entities DiffSubset compares.
type Touched struct {
	Players map[hex.Cell]bool
	Balls   map[int]bool
}

// NewTouched returns an empty selection.
func NewTouched() Touched {
	return Touched{Players: map[hex.Cell]bool{}, Balls: map[int]bool{}}
}

// Diff returns the records that turn past into present: players by cell
// in row-major order, then balls by index.
func Diff(past, present *sim.State) []Change {
	var out []Change
	for off := range hex.CellCount {
		c := hex.CellAt(off)
		out = diffPlayer(out, c, past.PlayerAt(c), present.PlayerAt(c))
	}
	for i := range max(past.BallSlots(), present.BallSlots()) {
		out = diffBall(out, i, past.Ball(i), present.Ball(i))
	}
	return out
}

// DiffSubset is Diff restricted to the touched entities.
func DiffSubset(past, present *sim.State, t Touched) []Change {
	var out []Change
	for off := range hex.CellCount {
		c := hex.CellAt(off)
		if t.Players[c] {
			out = diffPlayer(out, c, past.PlayerAt(c), present.PlayerAt(c))
		}
	}
	for i := range max(past.BallSlots(), present.BallSlots()) {
		if t.Balls[i] {
			out = diffBall(out, i, past.Ball(i), present.Ball(i))
		}
	}
	return out
}

func diffPlayer(out []Change, c hex.Cell, old, cur *sim.Player) []Change {
	switch {
	case old == nil && cur == nil:
		return out
	case cur == nil:
		return append(out, Change{Kind: PlayerRemoved, Cell: c})
	case old == nil:
		return append(out, NewPlayerAdded(c, cur))
	case !old.SameIdentity(cur):
		return append(out, Change{Kind: PlayerRemoved, Cell: c}, NewPlayerAdded(c, cur))
	}
	if old.Health != cur.Health {
		out = append(out, NewHealth(c, cur.Health))
	}
	if old.ShieldAngle != cur.ShieldAngle {
		out = append(out, NewShieldAngle(c, cur.ShieldAngle))
	}
	if old.ShieldMomentum != cur.ShieldMomentum {
		out = append(out, NewShieldMomentum(c, cur.ShieldMomentum))
	}
	return out
}

func diffBall(out []Change, i int, old, cur *sim.Ball) []Change {
	switch {
	case old == nil && cur == nil:
		return out
	case cur == nil:
		return append(out, Change{Kind: BallRemoved, Index: i})
	case old == nil:
		return append(out, NewBallAdded(i, cur))
	}
	if old.Position != cur.Position {
		out = append(out, Change{Kind: BallPositionChanged, Index: i, Vec: cur.Position})
	}
	if old.Velocity != cur.Velocity {
		out = append(out, Change{Kind: BallVelocityChanged, Index: i, Vec: cur.Velocity})
	}
	return out
}
