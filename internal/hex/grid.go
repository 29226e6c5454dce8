// Package hex implements the hexagonal arena grid: cell addressing,
// cell/position conversion, neighbour topology and zone geometry.
//
// The grid is a hexagon of MaxShells rings around a centre cell. Rows grow
// by one cell per row down to the equatorial row (row MaxShells) and shrink
// again below it, so row lengths run MaxShells+1 ... 2*MaxShells+1 ...
// MaxShells+1. Cells are addressed as (row, index within row) and stored in
// a flat arena through a precomputed row-start table.
package hex

import "math"

// Grid and body dimensions, in world units.
const (
	MaxShells = 18

	PlayerDistance     = 1000
	HalfPlayerDistance = PlayerDistance / 2
	YIncrement         = 866 // PlayerDistance * sqrt(3) / 2

	PlayerRadius = 150
	ShieldRadius = 175
	BallRadius   = 50
)

// HalfShieldWidth is half the angular width of a shield arc.
const HalfShieldWidth = math.Pi / 6

// Rows is the number of grid rows.
const Rows = 2*MaxShells + 1

// CellCount is the number of cells in the grid.
const CellCount = 3*MaxShells*(MaxShells+1) + 1

// MaxPlayers is the join capacity. Joins fill shells 0..MaxShells-1, the
// outer shell stays empty.
const MaxPlayers = 3*(MaxShells-1)*MaxShells + 1

// ZoneRadius is the circumradius of a player's zone.
var ZoneRadius = math.Floor(PlayerDistance / math.Sqrt(3))

// Cell addresses one grid position.
type Cell struct {
	Row   int `json:"row"`
	Index int `json:"index"`
}

// Center is the middle cell of the grid.
var Center = Cell{Row: MaxShells, Index: MaxShells}

var rowStart = func() [Rows + 1]int {
	var starts [Rows + 1]int
	for r := 0; r < Rows; r++ {
		starts[r+1] = starts[r] + RowLength(r)
	}
	return starts
}()

// RowLength returns the number of cells in row. Rows outside the grid
// have length 0.
func RowLength(row int) int {
	if row < 0 || row >= Rows {
		return 0
	}
	return 2*MaxShells + 1 - abs(row-MaxShells)
}

// InBounds reports whether c is a grid cell.
func InBounds(c Cell) bool {
	return c.Index >= 0 && c.Index < RowLength(c.Row)
}

// Offset returns the flat arena offset of c. c must be in bounds.
func Offset(c Cell) int {
	return rowStart[c.Row] + c.Index
}

// CellAt is the inverse of Offset.
func CellAt(offset int) Cell {
	row := 0
	for row < Rows-1 && rowStart[row+1] <= offset {
		row++
	}
	return Cell{Row: row, Index: offset - rowStart[row]}
}

// RowOffset is the x coordinate of the first cell centre of row.
func RowOffset(row int) float64 {
	return float64(HalfPlayerDistance * (abs(row-MaxShells) + 1))
}

// CellToPosition returns the world position of the centre of c.
func CellToPosition(c Cell) Vec {
	return Vec{
		X: RowOffset(c.Row) + float64(c.Index*PlayerDistance),
		Y: ZoneRadius + float64(c.Row*YIncrement),
	}
}

// PositionToCell returns the cell whose zone contains p. A point lies
// between the centre lines of two rows; the nearest centre of those rows
// owns it. The result is not bounds checked.
func PositionToCell(p Vec) Cell {
	top := int(math.Floor((p.Y - ZoneRadius) / YIncrement))

	best := Cell{}
	bestDist := math.Inf(1)
	for row := top; row <= top+1; row++ {
		idx := int(math.Round((p.X - RowOffset(row)) / PlayerDistance))
		c := Cell{Row: row, Index: idx}
		if d := p.Sub(CellToPosition(c)).LenSq(); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Directions around a cell, clockwise from the upper right. Edge d of a
// zone faces the neighbour in direction d.
const (
	UpperRight = iota
	Right
	LowerRight
	LowerLeft
	Left
	UpperLeft
)

// Opposite returns the direction pointing back from a neighbour.
func Opposite(d int) int {
	return (d + 3) % 6
}

// NeighborCell returns the neighbour of c in direction d (0..5). Rows shift
// by half a cell; the shift changes sign at the equatorial row, which gives
// three offset rules. The result is not bounds checked.
func NeighborCell(c Cell, d int) Cell {
	r, i := c.Row, c.Index
	switch {
	case r < MaxShells:
		switch d {
		case UpperRight:
			return Cell{r - 1, i}
		case Right:
			return Cell{r, i + 1}
		case LowerRight:
			return Cell{r + 1, i + 1}
		case LowerLeft:
			return Cell{r + 1, i}
		case Left:
			return Cell{r, i - 1}
		default:
			return Cell{r - 1, i - 1}
		}
	case r == MaxShells:
		switch d {
		case UpperRight:
			return Cell{r - 1, i}
		case Right:
			return Cell{r, i + 1}
		case LowerRight:
			return Cell{r + 1, i}
		case LowerLeft:
			return Cell{r + 1, i - 1}
		case Left:
			return Cell{r, i - 1}
		default:
			return Cell{r - 1, i - 1}
		}
	default:
		switch d {
		case UpperRight:
			return Cell{r - 1, i + 1}
		case Right:
			return Cell{r, i + 1}
		case LowerRight:
			return Cell{r + 1, i}
		case LowerLeft:
			return Cell{r + 1, i - 1}
		case Left:
			return Cell{r, i - 1}
		default:
			return Cell{r - 1, i}
		}
	}
}

// Shell returns the ring number of c (0 for the centre).
func Shell(c Cell) int {
	// Axial coordinates relative to the centre.
	q := c.Index - min(c.Row, MaxShells)
	r := c.Row - MaxShells
	s := -q - r
	return max(abs(q), abs(r), abs(s))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
