package tui

import (
	"fmt"
	"math"

	"github.com/vovakirdan/hexarena/internal/core"
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// followRadius is the world distance kept visible around the own cell.
const followRadius = 1.6 * hex.PlayerDistance

const (
	bodyRune     = 'O'
	ownBodyRune  = '@'
	deadRune     = 'x'
	ballRune     = '●'
	shieldRune = '*'

	// Bounds on the number of cells a shield arc is drawn with.
	minShieldPoints = 3
	maxShieldPoints = 9
)

// Camera frames the arena: it follows the own cell while playing and
// shows every occupied cell while watching.
func Camera(area core.Rect, s *sim.State, own *hex.Cell) core.Viewport {
	if own != nil {
		c := hex.CellToPosition(*own)
		return core.FitViewport(area, c.X-followRadius, c.Y-followRadius, c.X+followRadius, c.Y+followRadius)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	if s != nil {
		s.EachPlayer(func(_ hex.Cell, p *sim.Player) {
			minX, maxX = math.Min(minX, p.Position.X), math.Max(maxX, p.Position.X)
			minY, maxY = math.Min(minY, p.Position.Y), math.Max(maxY, p.Position.Y)
		})
	}
	if math.IsInf(minX, 1) {
		c := hex.CellToPosition(hex.Center)
		minX, maxX, minY, maxY = c.X, c.X, c.Y, c.Y
	}
	r := hex.ZoneRadius
	return core.FitViewport(area, minX-r, minY-r, maxX+r, maxY+r)
}

// DrawArena rasterises s onto screen through v. own marks the local
// player's cell, nil for spectators.
func DrawArena(screen *core.Screen, v core.Viewport, s *sim.State, own *hex.Cell) {
	if s == nil {
		return
	}
	s.EachPlayer(func(_ hex.Cell, p *sim.Player) {
		drawZone(screen, v, p)
	})
	s.EachPlayer(func(c hex.Cell, p *sim.Player) {
		drawPlayer(screen, v, p, own != nil && *own == c)
	})
	for i := range s.BallSlots() {
		if b := s.Ball(i); b != nil {
			x, y := v.Project(b.Position.X, b.Position.Y)
			screen.SetColor(x, y, ballRune, core.ColorBrightWhite)
		}
	}
}

func drawZone(screen *core.Screen, v core.Viewport, p *sim.Player) {
	points := hex.ZonePoints()
	for d, active := range p.ActiveBounds {
		if !active {
			continue
		}
		a := p.Position.Add(points[d])
		b := p.Position.Add(points[(d+1)%6])
		x0, y0 := v.Project(a.X, a.Y)
		x1, y1 := v.Project(b.X, b.Y)
		screen.DrawLine(x0, y0, x1, y1, 0, core.ColorGray)
	}
}

func drawPlayer(screen *core.Screen, v core.Viewport, p *sim.Player, own bool) {
	color := core.ParseCSSColor(p.Color)
	cx, cy := v.Project(p.Position.X, p.Position.Y)

	if !p.Alive() {
		screen.SetColor(cx, cy, deadRune, core.ColorGray)
		return
	}

	// Shields are drawn at least a cell and a half out so they stay
	// visible when zoomed out.
	r := math.Max(hex.ShieldRadius, 1.5/v.Scale)
	points := core.Clamp(v.Columns(2*hex.HalfShieldWidth*r), minShieldPoints, maxShieldPoints)
	for i := range points {
		a := p.ShieldAngle - hex.HalfShieldWidth + 2*hex.HalfShieldWidth*float64(i)/float64(points-1)
		pt := p.Position.Add(hex.FromAngle(a).Scale(r))
		x, y := v.Project(pt.X, pt.Y)
		screen.SetColor(x, y, shieldRune, color)
	}

	body := bodyRune
	if own {
		body = ownBodyRune
	}
	screen.SetColor(cx, cy, body, color)

	label := p.Name
	if label == "" {
		label = "?"
	}
	screen.DrawTextAround(cx, cy-2, label, color)
	frac := core.ClampF(p.Health/sim.MaxHealth, 0, 1)
	screen.DrawTextAround(cx, cy+2, fmt.Sprintf("%.0f", p.Health), core.HealthColor(frac))
}

// ScreenToAngle returns the shield angle pointing from the own player at
// world position from towards screen cell (x, y).
func ScreenToAngle(v core.Viewport, from hex.Vec, x, y int) float64 {
	cx, cy := v.Project(from.X, from.Y)
	dx := float64(x-cx) / v.Aspect
	dy := float64(y - cy)
	return math.Atan2(dy, dx)
}
