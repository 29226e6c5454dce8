package hex

import (
	"math"
	"sync"
)

var (
	zonePoints   [6]Vec
	boundNormals [6]Vec
)

func init() {
	for i := range 6 {
		a := float64(i) * math.Pi / 3
		zonePoints[i] = Vec{
			X: math.Floor(ZoneRadius * math.Sin(a)),
			Y: math.Floor(-ZoneRadius * math.Cos(a)),
		}
		n := math.Pi/6 + a
		boundNormals[i] = Vec{X: -math.Sin(n), Y: math.Cos(n)}
	}
}

// ZonePoints returns the zone vertices relative to the cell centre.
// Vertex 0 is at the top; edge d runs from vertex d to vertex d+1 and
// faces the neighbour in direction d.
func ZonePoints() [6]Vec {
	return zonePoints
}

// BoundNormals returns the inward unit normal of each zone edge.
func BoundNormals() [6]Vec {
	return boundNormals
}

var (
	joinOrderOnce sync.Once
	joinOrder     []Cell
)

// JoinOrder returns the cells of the grid in the order new players take
// them: the centre, then each shell walked clockwise starting from its
// upper-left cell. The slice is shared and must not be modified.
func JoinOrder() []Cell {
	joinOrderOnce.Do(func() {
		joinOrder = make([]Cell, 0, CellCount)
		joinOrder = append(joinOrder, Center)
		for shell := 1; shell <= MaxShells; shell++ {
			cur := NeighborCell(joinOrder[len(joinOrder)-1], Left)
			for d := range 6 {
				for range shell {
					cur = NeighborCell(cur, d)
					joinOrder = append(joinOrder, cur)
				}
			}
		}
	})
	return joinOrder
}
