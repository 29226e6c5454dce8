// Package reconcile applies late shield inputs by rewinding to the
// snapshot of the tick they were issued at and replaying to the present.
package reconcile

import (
	"errors"
	"slices"

	"github.com/vovakirdan/hexarena/internal/delta"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/history"
	"github.com/vovakirdan/hexarena/internal/sim"
)

var (
	// ErrStaleInput marks an input issued before the history window.
	ErrStaleInput = errors.New("reconcile: input older than history window")
	// ErrUnknownPlayer marks an input for a cell whose player is gone or
	// was replaced by another.
	ErrUnknownPlayer = errors.New("reconcile: player not in arena")
	// ErrEmptyInput marks an input carrying neither angle nor momentum.
	ErrEmptyInput = errors.New("reconcile: input changes nothing")
)

// Input is a shield command for the player in Cell, issued when the
// client was at Tick. JoinTick identifies the player so a command cannot
// reach a later occupant of the same cell.
type Input struct {
	Cell     hex.Cell
	JoinTick int
	Tick     int
	Angle    *float64
	Momentum *float64
	// MaxAge caps how far back this input may rewind, from the measured
	// latency of its connection. Zero means the whole window.
	MaxAge int
}

func (in Input) changes() []delta.Change {
	var out []delta.Change
	if in.Angle != nil {
		out = append(out, delta.NewShieldAngle(in.Cell, hex.WrapAngle(*in.Angle)))
	}
	if in.Momentum != nil {
		out = append(out, delta.NewShieldMomentum(in.Cell, *in.Momentum))
	}
	return out
}

// Applied describes an accepted input and the age it was applied at.
type Applied struct {
	Input   Input
	Age     int
	Clamped bool
}

// Dropped describes a rejected input.
type Dropped struct {
	Input Input
	Err   error
}

// Result of one reconciliation.
type Result struct {
	// State is the new present. It is the original present when nothing
	// was applied.
	State *sim.State
	// PresentChanges are input records applied at the present tick; the
	// caller adds them to the tick's external changes.
	PresentChanges []delta.Change
	// Corrections turn the old present into State.
	Corrections []delta.Change
	Touched     delta.Touched
	Applied     []Applied
	Dropped     []Dropped
	// Replayed is the number of ticks re-simulated.
	Replayed int
}

// Reconcile applies inputs to the arena. present is the state of
// presentTick with presentChanges already applied; h holds the snapshots
// of the preceding ticks, At(1) being presentTick-1. Historical slots
// touched by the replay are overwritten in place.
func Reconcile(h *history.History, present *sim.State, presentTick int, presentChanges []delta.Change, inputs []Input) Result {
	res := Result{State: present, Touched: delta.NewTouched()}

	pending := map[int][]delta.Change{}
	start := -1
	for _, in := range inputs {
		age, clamped, err := resolveAge(h, present, presentTick, in)
		if err != nil {
			res.Dropped = append(res.Dropped, Dropped{Input: in, Err: err})
			continue
		}
		pending[age] = append(pending[age], in.changes()...)
		res.Touched.Players[in.Cell] = true
		res.Applied = append(res.Applied, Applied{Input: in, Age: age, Clamped: clamped})
		start = max(start, age)
	}
	if start < 0 {
		return res
	}

	s := present.Clone()
	if start > 0 {
		snap, _ := h.At(start)
		s = snap.State.Clone()
		delta.Apply(s, pending[start])
		snap.Changes = append(snap.Changes, pending[start]...)
		snap.State = s.Clone()
	}

	r := replay{touched: res.Touched}
	for age := start - 1; age >= 0; age-- {
		r.mark(s)
		r.note(s.Tick())
		res.Replayed++
		if age > 0 {
			snap, _ := h.At(age)
			snap.Changes = append(snap.Changes, pending[age]...)
			delta.Apply(s, snap.Changes)
			snap.State = s.Clone()
		} else {
			delta.Apply(s, presentChanges)
		}
	}
	res.PresentChanges = pending[0]
	delta.Apply(s, res.PresentChanges)
	r.mark(s)
	r.sweep(present, s)

	res.State = s
	res.Corrections = delta.DiffSubset(present, s, res.Touched)
	return res
}

// resolveAge finds the age at which in takes effect: its origin tick,
// limited by the connection's window and moved towards the present until
// the issuing player exists.
func resolveAge(h *history.History, present *sim.State, presentTick int, in Input) (int, bool, error) {
	if len(in.changes()) == 0 {
		return 0, false, ErrEmptyInput
	}
	if p := present.PlayerAt(in.Cell); p == nil || p.JoinTick != in.JoinTick {
		return 0, false, ErrUnknownPlayer
	}

	age := max(presentTick-in.Tick, 0)
	if age > h.Cap() {
		return 0, false, ErrStaleInput
	}
	clamped := false
	if in.MaxAge > 0 && age > in.MaxAge {
		age, clamped = in.MaxAge, true
	}
	age = min(age, h.Len())

	for ; age > 0; age-- {
		snap, _ := h.At(age)
		if p := snap.State.PlayerAt(in.Cell); p != nil && p.JoinTick == in.JoinTick {
			break
		}
	}
	return age, clamped, nil
}

// replay tracks which entities may differ from the previous trajectory.
type replay struct {
	touched delta.Touched
}

// mark flags balls inside touched cells, and dead players whose cell
// holds a touched ball, since that ball decides when they are cleared.
func (r *replay) mark(s *sim.State) {
	for i := range s.BallSlots() {
		b := s.Ball(i)
		if b == nil {
			continue
		}
		c := hex.PositionToCell(b.Position)
		if r.touched.Players[c] {
			r.touched.Balls[i] = true
			continue
		}
		if r.touched.Balls[i] {
			if p := s.PlayerAt(c); p != nil && !p.Alive() {
				r.touched.Players[c] = true
			}
		}
	}
}

func (r *replay) note(ev sim.TickEvents) {
	for _, col := range ev.Collisions {
		if r.touched.Balls[col.Ball] {
			r.touched.Players[col.Cell] = true
		}
	}
	for _, c := range ev.RemovedPlayers {
		r.touched.Players[c] = true
	}
	for _, i := range ev.RemovedBalls {
		r.touched.Balls[i] = true
	}
}

// sweep flags every entity whose value differs between the old present
// and the replayed one. The replay only sees its own trajectory: a player
// that a ball hit before the rewind but misses after it never shows up in
// note, yet its health changed.
func (r *replay) sweep(old, cur *sim.State) {
	for off := range hex.CellCount {
		c := hex.CellAt(off)
		p, q := old.PlayerAt(c), cur.PlayerAt(c)
		if (p == nil) != (q == nil) || (p != nil && *p != *q) {
			r.touched.Players[c] = true
		}
	}
	for i := range max(old.BallSlots(), cur.BallSlots()) {
		p, q := old.Ball(i), cur.Ball(i)
		if (p == nil) != (q == nil) || (p != nil && *p != *q) {
			r.touched.Balls[i] = true
		}
	}
}

// Dedupe keeps the newest input per cell, the last one in arrival order
// when ticks tie, and returns them oldest first.
func Dedupe(inputs []Input) []Input {
	latest := map[hex.Cell]Input{}
	for _, in := range inputs {
		if prev, ok := latest[in.Cell]; !ok || in.Tick >= prev.Tick {
			latest[in.Cell] = in
		}
	}
	out := make([]Input, 0, len(latest))
	for _, in := range latest {
		out = append(out, in)
	}
	slices.SortFunc(out, func(a, b Input) int {
		if a.Tick != b.Tick {
			return a.Tick - b.Tick
		}
		if a.Cell.Row != b.Cell.Row {
			return a.Cell.Row - b.Cell.Row
		}
		return a.Cell.Index - b.Cell.Index
	})
	return out
}
