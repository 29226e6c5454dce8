package sim

import (
	"errors"

	"github.com/vovakirdan/hexarena/internal/hex"
)

var (
	// ErrGameFull is returned when the arena is at player capacity.
	ErrGameFull = errors.New("sim: game full")
	// ErrNoJoinCell is returned when no free cell borders an occupied one.
	ErrNoJoinCell = errors.New("sim: no free cell next to an occupied one")
)

// State is one arena: players in a flat grid arena indexed by
// hex.Offset, balls in a sparse slice whose indices are stable ids.
//
// Invariants: PlayerCount and BallCount equal the number of non-nil
// slots, and a present player's ActiveBounds[d] is true exactly when no
// player occupies its neighbour in direction d.
type State struct {
	params  Params
	players []*Player
	balls   []*Ball

	PlayerCount int
	BallCount   int
}

// NewState returns an empty arena simulated with params.
func NewState(params Params) *State {
	return &State{
		params:  params,
		players: make([]*Player, hex.CellCount),
	}
}

// Params returns the physics coefficients of the state.
func (s *State) Params() Params {
	return s.params
}

// Clone returns a deep copy sharing nothing with s.
func (s *State) Clone() *State {
	c := &State{
		params:      s.params,
		players:     make([]*Player, len(s.players)),
		balls:       make([]*Ball, len(s.balls)),
		PlayerCount: s.PlayerCount,
		BallCount:   s.BallCount,
	}
	for i, p := range s.players {
		if p != nil {
			c.players[i] = p.Clone()
		}
	}
	for i, b := range s.balls {
		if b != nil {
			c.balls[i] = b.Clone()
		}
	}
	return c
}

// PlayerAt returns the player in cell c, or nil.
func (s *State) PlayerAt(c hex.Cell) *Player {
	if !hex.InBounds(c) {
		return nil
	}
	return s.players[hex.Offset(c)]
}

// EachPlayer calls fn for every present player in row-major order.
func (s *State) EachPlayer(fn func(c hex.Cell, p *Player)) {
	for off, p := range s.players {
		if p != nil {
			fn(hex.CellAt(off), p)
		}
	}
}

// AddPlayer places p in c, replacing any occupant, and updates the
// bounds of c and its neighbours.
func (s *State) AddPlayer(c hex.Cell, p *Player) {
	off := hex.Offset(c)
	if s.players[off] == nil {
		s.PlayerCount++
	}
	s.players[off] = p
	s.refreshBounds(c)
}

// RemovePlayer empties c and closes the neighbouring edges towards it.
// It reports whether a player was removed.
func (s *State) RemovePlayer(c hex.Cell) bool {
	if s.PlayerAt(c) == nil {
		return false
	}
	s.players[hex.Offset(c)] = nil
	s.PlayerCount--
	s.refreshBounds(c)
	return true
}

func (s *State) refreshBounds(c hex.Cell) {
	self := s.PlayerAt(c)
	for d := range 6 {
		n := s.PlayerAt(hex.NeighborCell(c, d))
		if self != nil {
			self.ActiveBounds[d] = n == nil
		}
		if n != nil {
			n.ActiveBounds[hex.Opposite(d)] = self == nil
		}
	}
}

// FindJoinCell returns the first cell in join order that is free and
// borders an occupied cell; the centre when the arena is empty.
func (s *State) FindJoinCell() (hex.Cell, error) {
	if s.PlayerCount >= hex.MaxPlayers {
		return hex.Cell{}, ErrGameFull
	}
	if s.PlayerCount == 0 {
		return hex.Center, nil
	}
	for _, c := range hex.JoinOrder()[:hex.MaxPlayers] {
		if s.PlayerAt(c) != nil {
			continue
		}
		for d := range 6 {
			if s.PlayerAt(hex.NeighborCell(c, d)) != nil {
				return c, nil
			}
		}
	}
	return hex.Cell{}, ErrNoJoinCell
}

// Ball returns the ball at index i, or nil.
func (s *State) Ball(i int) *Ball {
	if i < 0 || i >= len(s.balls) {
		return nil
	}
	return s.balls[i]
}

// BallSlots is the length of the ball slice, including empty slots.
func (s *State) BallSlots() int {
	return len(s.balls)
}

// AddBall stores b in the first free slot and returns its index.
func (s *State) AddBall(b *Ball) int {
	for i, existing := range s.balls {
		if existing == nil {
			s.balls[i] = b
			s.BallCount++
			return i
		}
	}
	s.balls = append(s.balls, b)
	s.BallCount++
	return len(s.balls) - 1
}

// PutBall stores b at index i, growing the slice as needed.
func (s *State) PutBall(i int, b *Ball) {
	for len(s.balls) <= i {
		s.balls = append(s.balls, nil)
	}
	if s.balls[i] == nil {
		s.BallCount++
	}
	s.balls[i] = b
}

// RemoveBall empties slot i and reports whether a ball was there.
func (s *State) RemoveBall(i int) bool {
	if s.Ball(i) == nil {
		return false
	}
	s.balls[i] = nil
	s.BallCount--
	return true
}

// BallsIn returns the indices of balls whose position lies in c.
func (s *State) BallsIn(c hex.Cell) []int {
	var idx []int
	for i, b := range s.balls {
		if b != nil && hex.PositionToCell(b.Position) == c {
			idx = append(idx, i)
		}
	}
	return idx
}

// Equal reports whether a and b hold the same players and balls.
func Equal(a, b *State) bool {
	if a.PlayerCount != b.PlayerCount || a.BallCount != b.BallCount {
		return false
	}
	for i := range a.players {
		p, q := a.players[i], b.players[i]
		if (p == nil) != (q == nil) || (p != nil && *p != *q) {
			return false
		}
	}
	for i := range max(len(a.balls), len(b.balls)) {
		p, q := a.Ball(i), b.Ball(i)
		if (p == nil) != (q == nil) || (p != nil && *p != *q) {
			return false
		}
	}
	return true
}
