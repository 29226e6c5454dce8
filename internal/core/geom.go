// Package core provides the terminal canvas the arena is rasterised onto.
// It contains no external dependencies (especially no Bubble Tea) so the
// drawing code stays pure and testable.
package core

import "math"

// Rect is an axis-aligned area of the screen in character cells.
type Rect struct {
	X, Y int // Top-left corner position
	W, H int // Width and height
}

// NewRect creates a new rectangle with the given position and dimensions.
func NewRect(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Right returns the x-coordinate of the right edge.
func (r Rect) Right() int {
	return r.X + r.W
}

// Bottom returns the y-coordinate of the bottom edge.
func (r Rect) Bottom() int {
	return r.Y + r.H
}

// Contains returns true if the point (x, y) is inside this rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Center returns the center point of the rectangle.
func (r Rect) Center() (int, int) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Viewport maps world coordinates onto a rectangle of character cells.
// Terminal cells are about twice as tall as they are wide, so one world
// unit covers Aspect times more columns than rows.
type Viewport struct {
	Area   Rect
	MinX   float64 // world x shown at the left edge
	MinY   float64 // world y shown at the top edge
	Scale  float64 // rows per world unit
	Aspect float64
}

// DefaultAspect is the width to height ratio of a terminal cell, inverted.
const DefaultAspect = 2.0

// FitViewport returns the largest viewport showing the world box
// [minX,maxX]x[minY,maxY] inside area without distortion, centred.
func FitViewport(area Rect, minX, minY, maxX, maxY float64) Viewport {
	v := Viewport{Area: area, MinX: minX, MinY: minY, Aspect: DefaultAspect}
	w, h := maxX-minX, maxY-minY
	if w <= 0 || h <= 0 || area.W <= 0 || area.H <= 0 {
		v.Scale = 1
		return v
	}
	v.Scale = math.Min(float64(area.H-1)/h, float64(area.W-1)/(w*v.Aspect))
	// Centre the box in the unused space.
	v.MinX -= (float64(area.W-1)/(v.Scale*v.Aspect) - w) / 2
	v.MinY -= (float64(area.H-1)/v.Scale - h) / 2
	return v
}

// Project returns the cell showing world point (x, y).
func (v Viewport) Project(x, y float64) (int, int) {
	cx := v.Area.X + int(math.Round((x-v.MinX)*v.Scale*v.Aspect))
	cy := v.Area.Y + int(math.Round((y-v.MinY)*v.Scale))
	return cx, cy
}

// Columns returns how many columns a world length covers.
func (v Viewport) Columns(length float64) int {
	return int(math.Round(length * v.Scale * v.Aspect))
}

// Clamp restricts a value to be within [lo, hi].
func Clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// ClampF restricts a float64 value to be within [lo, hi].
func ClampF(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
