// Package spawner grows a connected grid of tiles with a random self-avoiding walk.
package spawner

import (
	"fmt"
	"math"
)

// Vec2 is a position in world units.
type Vec2 struct {
	X, Y float64
}

// Cell is an integer grid position. Y grows upward, as in world space.
type Cell struct {
	X, Y int
}

// Directions in the order neighbours are considered.
var (
	Up    = Cell{0, 1}
	Down  = Cell{0, -1}
	Right = Cell{1, 0}
	Left  = Cell{-1, 0}
)

var directions = [4]Cell{Up, Down, Right, Left}

// Round converts a world position to the nearest cell, rounding halves to even.
func Round(v Vec2) Cell {
	return Cell{
		X: int(math.RoundToEven(v.X)),
		Y: int(math.RoundToEven(v.Y)),
	}
}

// Add returns the cell offset by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{c.X + d.X, c.Y + d.Y}
}

// Vec2 returns the cell's world position.
func (c Cell) Vec2() Vec2 {
	return Vec2{float64(c.X), float64(c.Y)}
}

// Neighbors returns the four orthogonal neighbours (up, down, right, left).
func (c Cell) Neighbors() [4]Cell {
	var out [4]Cell
	for i, d := range directions {
		out[i] = c.Add(d)
	}
	return out
}

// IsAdjacent returns true if other is an orthogonal neighbour of c.
func (c Cell) IsAdjacent(other Cell) bool {
	dx, dy := c.X-other.X, c.Y-other.Y
	return dx*dx+dy*dy == 1
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Tile is a spawned cell.
type Tile struct {
	Cell      Cell
	Index     int // Spawn order, starting at 0
	Excursion int // Excursion the tile belongs to, used for colouring
}

// Segment is a path line joining two adjacent tiles.
type Segment struct {
	From, To  Cell
	Excursion int
}
