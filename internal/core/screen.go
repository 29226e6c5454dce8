package core

import (
	"strings"
	"unicode/utf8"
)

// Screen is a 2D buffer of coloured characters.
// The arena renderer draws into it and the platform layer styles and
// prints it.
type Screen struct {
	width  int
	height int
	cells  [][]rune
	colors [][]Color
}

// Run is a horizontal stretch of characters sharing one colour.
type Run struct {
	Text  string
	Color Color
}

// NewScreen creates a new screen buffer with the given dimensions.
func NewScreen(width, height int) *Screen {
	s := &Screen{
		width:  max(width, 0),
		height: max(height, 0),
	}
	s.allocate()
	s.Clear()
	return s
}

func (s *Screen) allocate() {
	s.cells = make([][]rune, s.height)
	s.colors = make([][]Color, s.height)
	for y := range s.cells {
		s.cells[y] = make([]rune, s.width)
		s.colors[y] = make([]Color, s.width)
	}
}

// Width returns the screen width in characters.
func (s *Screen) Width() int {
	return s.width
}

// Height returns the screen height in characters.
func (s *Screen) Height() int {
	return s.height
}

// Bounds returns the whole screen as a Rect.
func (s *Screen) Bounds() Rect {
	return NewRect(0, 0, s.width, s.height)
}

// Resize changes the screen dimensions and clears it.
func (s *Screen) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	if width == s.width && height == s.height {
		s.Clear()
		return
	}
	s.width = width
	s.height = height
	s.allocate()
	s.Clear()
}

// Clear fills the entire screen with uncoloured spaces.
func (s *Screen) Clear() {
	for y := range s.cells {
		for x := range s.cells[y] {
			s.cells[y][x] = ' '
			s.colors[y][x] = ColorDefault
		}
	}
}

// SetColor places a rune with a colour at the given position.
// Out-of-bounds coordinates are silently ignored.
func (s *Screen) SetColor(x, y int, r rune, c Color) {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return
	}
	s.cells[y][x] = r
	s.colors[y][x] = c
}

// Get returns the rune at the given position.
// Returns space for out-of-bounds coordinates.
func (s *Screen) Get(x, y int) rune {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return ' '
	}
	return s.cells[y][x]
}

// ColorAt returns the colour at the given position.
func (s *Screen) ColorAt(x, y int) Color {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return ColorDefault
	}
	return s.colors[y][x]
}

// DrawText writes a string horizontally starting at (x, y).
// Characters that extend beyond screen bounds are clipped.
func (s *Screen) DrawText(x, y int, text string, c Color) {
	i := 0
	for _, r := range text {
		s.SetColor(x+i, y, r, c)
		i++
	}
}

// DrawTextCentered draws text centered horizontally at the given y position.
func (s *Screen) DrawTextCentered(y int, text string, c Color) {
	x := (s.width - utf8.RuneCountInString(text)) / 2
	s.DrawText(x, y, text, c)
}

// DrawTextAround centres text on column cx.
func (s *Screen) DrawTextAround(cx, y int, text string, c Color) {
	s.DrawText(cx-utf8.RuneCountInString(text)/2, y, text, c)
}

// DrawBox draws a box outline using box-drawing characters.
func (s *Screen) DrawBox(r Rect, c Color) {
	s.SetColor(r.X, r.Y, '┌', c)
	s.SetColor(r.Right()-1, r.Y, '┐', c)
	s.SetColor(r.X, r.Bottom()-1, '└', c)
	s.SetColor(r.Right()-1, r.Bottom()-1, '┘', c)

	for x := r.X + 1; x < r.Right()-1; x++ {
		s.SetColor(x, r.Y, '─', c)
		s.SetColor(x, r.Bottom()-1, '─', c)
	}
	for y := r.Y + 1; y < r.Bottom()-1; y++ {
		s.SetColor(r.X, y, '│', c)
		s.SetColor(r.Right()-1, y, '│', c)
	}
}

// DrawLine draws a straight line between two cells (Bresenham). The rune
// for each step follows the line's slope unless r is non-zero.
func (s *Screen) DrawLine(x0, y0, x1, y1 int, r rune, c Color) {
	if r == 0 {
		r = slopeRune(x1-x0, y1-y0)
	}
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		s.SetColor(x0, y0, r, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// slopeRune picks a character resembling a line with the given direction.
func slopeRune(dx, dy int) rune {
	switch {
	case dy == 0:
		return '─'
	case dx == 0:
		return '│'
	case abs(dx) > 4*abs(dy):
		return '─'
	case abs(dy)*2 > abs(dx)*3:
		return '│'
	case (dx > 0) == (dy > 0):
		return '\\'
	default:
		return '/'
	}
}

// String converts the screen buffer to a plain string without colours.
func (s *Screen) String() string {
	var sb strings.Builder
	sb.Grow(s.width*s.height + s.height)

	for y := 0; y < s.height; y++ {
		if y > 0 {
			sb.WriteRune('\n')
		}
		for x := 0; x < s.width; x++ {
			sb.WriteRune(s.cells[y][x])
		}
	}
	return sb.String()
}

// Row returns a copy of the specified row as a string.
func (s *Screen) Row(y int) string {
	if y < 0 || y >= s.height {
		return strings.Repeat(" ", s.width)
	}
	return string(s.cells[y])
}

// Runs splits row y into stretches of equal colour, left to right.
func (s *Screen) Runs(y int) []Run {
	if y < 0 || y >= s.height || s.width == 0 {
		return nil
	}
	var runs []Run
	start := 0
	for x := 1; x <= s.width; x++ {
		if x == s.width || s.ColorAt(x, y) != s.ColorAt(start, y) {
			runs = append(runs, Run{
				Text:  string(s.cells[y][start:x]),
				Color: s.ColorAt(start, y),
			})
			start = x
		}
	}
	return runs
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
