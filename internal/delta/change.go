// Package delta computes and applies ordered change records between two
// arena states. Records address players by cell and balls by slot index.
package delta

import (
	"fmt"

	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// Kind tags a change record.
type Kind uint8

const (
	PlayerAdded Kind = iota + 1
	PlayerRemoved
	HealthChanged
	ShieldAngleChanged
	ShieldMomentumChanged
	BallAdded
	BallRemoved
	BallPositionChanged
	BallVelocityChanged
)

var kindNames = map[Kind]string{
	PlayerAdded:           "player_added",
	PlayerRemoved:         "player_removed",
	HealthChanged:         "health",
	ShieldAngleChanged:    "shield_angle",
	ShieldMomentumChanged: "shield_momentum",
	BallAdded:             "ball_added",
	BallRemoved:           "ball_removed",
	BallPositionChanged:   "ball_position",
	BallVelocityChanged:   "ball_velocity",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", k)
}

// IsPlayer reports whether records of kind k address a cell.
func (k Kind) IsPlayer() bool {
	return k >= PlayerAdded && k <= ShieldMomentumChanged
}

// Change is one record. Which fields are meaningful depends on Kind:
// Cell for player kinds, Index for ball kinds, Player for PlayerAdded,
// Ball for BallAdded, Value for scalar player fields and Vec for ball
// position and velocity.
type Change struct {
	Kind   Kind        `json:"kind"`
	Cell   hex.Cell    `json:"cell,omitzero"`
	Index  int         `json:"index,omitempty"`
	Player *sim.Player `json:"player,omitempty"`
	Ball   *sim.Ball   `json:"ball,omitempty"`
	Value  float64     `json:"value,omitempty"`
	Vec    hex.Vec     `json:"vec,omitzero"`
}

func (c Change) String() string {
	switch {
	case c.Kind.IsPlayer():
		return fmt.Sprintf("%s%v=%v", c.Kind, c.Cell, c.Value)
	case c.Kind == BallPositionChanged || c.Kind == BallVelocityChanged:
		return fmt.Sprintf("%s[%d]=%v", c.Kind, c.Index, c.Vec)
	default:
		return fmt.Sprintf("%s[%d]", c.Kind, c.Index)
	}
}

// NewHealth returns a HealthChanged record.
func NewHealth(c hex.Cell, v float64) Change {
	return Change{Kind: HealthChanged, Cell: c, Value: v}
}

// NewShieldAngle returns a ShieldAngleChanged record.
func NewShieldAngle(c hex.Cell, v float64) Change {
	return Change{Kind: ShieldAngleChanged, Cell: c, Value: v}
}

// NewShieldMomentum returns a ShieldMomentumChanged record.
func NewShieldMomentum(c hex.Cell, v float64) Change {
	return Change{Kind: ShieldMomentumChanged, Cell: c, Value: v}
}

// NewPlayerAdded returns a PlayerAdded record holding a copy of p.
func NewPlayerAdded(c hex.Cell, p *sim.Player) Change {
	return Change{Kind: PlayerAdded, Cell: c, Player: p.Clone()}
}

// NewBallAdded returns a BallAdded record holding a copy of b.
func NewBallAdded(i int, b *sim.Ball) Change {
	return Change{Kind: BallAdded, Index: i, Ball: b.Clone()}
}
