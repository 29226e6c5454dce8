package sim

import (
	"fmt"
	"html"
	"math/rand"

	"golang.org/x/text/unicode/norm"

	"github.com/vovakirdan/hexarena/internal/hex"
)

// MaxHealth is the health of a freshly joined player.
const MaxHealth = 100

// MaxNameLength bounds player names, in runes.
const MaxNameLength = 16

// Player owns one cell of the arena.
type Player struct {
	Name           string  `json:"name"`
	Color          string  `json:"color"`
	Health         float64 `json:"health"`
	ShieldAngle    float64 `json:"shieldAngle"`
	ShieldMomentum float64 `json:"shieldMomentum"`
	ActiveBounds   [6]bool `json:"activeBounds"`
	Position       hex.Vec `json:"position"`
	JoinTick       int     `json:"joinTick"`
}

// Alive reports whether the player still has health.
func (p *Player) Alive() bool {
	return p.Health > 0
}

// Enclosed reports whether every edge of the zone is closed.
func (p *Player) Enclosed() bool {
	for _, b := range p.ActiveBounds {
		if !b {
			return false
		}
	}
	return true
}

// SameIdentity reports whether p and o are the same joined player.
func (p *Player) SameIdentity(o *Player) bool {
	return p.Name == o.Name && p.Color == o.Color && p.JoinTick == o.JoinTick && p.Position == o.Position
}

// Clone returns an independent copy.
func (p *Player) Clone() *Player {
	c := *p
	return &c
}

// PlayerSpec describes a new player. Nil fields take their defaults, so
// an explicit zero angle or momentum is kept as given.
type PlayerSpec struct {
	Name           string
	Color          string
	Cell           hex.Cell
	JoinTick       int
	Health         *float64
	ShieldAngle    *float64
	ShieldMomentum *float64
	ActiveBounds   *[6]bool
}

// NewPlayer builds a player from spec.
func NewPlayer(spec PlayerSpec) *Player {
	p := &Player{
		Name:     SanitizeName(spec.Name),
		Color:    spec.Color,
		Health:   MaxHealth,
		Position: hex.CellToPosition(spec.Cell),
		JoinTick: spec.JoinTick,
	}
	for i := range p.ActiveBounds {
		p.ActiveBounds[i] = true
	}
	if spec.Health != nil {
		p.Health = min(max(*spec.Health, 0), MaxHealth)
	}
	if spec.ShieldAngle != nil {
		p.ShieldAngle = hex.WrapAngle(*spec.ShieldAngle)
	}
	if spec.ShieldMomentum != nil {
		p.ShieldMomentum = *spec.ShieldMomentum
	}
	if spec.ActiveBounds != nil {
		p.ActiveBounds = *spec.ActiveBounds
	}
	return p
}

// SanitizeName normalises, truncates and HTML-escapes a player name.
func SanitizeName(name string) string {
	runes := []rune(norm.NFC.String(name))
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	return html.EscapeString(string(runes))
}

// RandomColor returns a CSS colour dark enough to read on a light arena.
func RandomColor(rng *rand.Rand) string {
	return fmt.Sprintf("rgb(%d, %d, %d)", rng.Intn(180), rng.Intn(180), rng.Intn(180))
}

// Ball is a projectile bouncing between zones.
type Ball struct {
	Position hex.Vec `json:"position"`
	Velocity hex.Vec `json:"velocity"`
}

// Clone returns an independent copy.
func (b *Ball) Clone() *Ball {
	c := *b
	return &c
}

// NewBall creates a ball at pos. A nil velocity picks a random one; this
// is the only random quantity in the simulation.
func NewBall(pos hex.Vec, vel *hex.Vec, rng *rand.Rand) *Ball {
	b := &Ball{Position: pos}
	if vel != nil {
		b.Velocity = *vel
	} else {
		b.Velocity = hex.Vec{X: 1 + rng.Float64(), Y: 1 + rng.Float64()}
	}
	return b
}
