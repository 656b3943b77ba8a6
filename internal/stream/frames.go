package stream

import "github.com/samdwyer/tilespawner/internal/spawner"

// Frame types.
const (
	TypeHello    = "hello"
	TypeStep     = "step"
	TypeComplete = "complete"
	TypeError    = "error"
)

// HelloFrame opens every stream. It describes the grid and the first tile.
type HelloFrame struct {
	Type    string     `json:"type"`
	Seed    int64      `json:"seed"`
	Cols    int        `json:"cols"`
	Rows    int        `json:"rows"`
	Bounds  BoundsJSON `json:"bounds"`
	Palette []string   `json:"palette"`
	Start   TileJSON   `json:"start"`
}

// StepFrame reports one spawned tile.
type StepFrame struct {
	Type         string   `json:"type"`
	Tile         TileJSON `json:"tile"`
	From         [2]int   `json:"from"`
	Backtracked  [][2]int `json:"backtracked,omitempty"`
	NewExcursion bool     `json:"newExcursion,omitempty"`
}

// CompleteFrame ends a stream.
type CompleteFrame struct {
	Type       string  `json:"type"`
	Tiles      int     `json:"tiles"`
	Excursions int     `json:"excursions"`
	Backtracks int     `json:"backtracks"`
	Cells      int     `json:"cells"`
	Coverage   float64 `json:"coverage"`
	Exhausted  bool    `json:"exhausted"`
}

// ErrorFrame is sent before closing when the walk cannot start.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type BoundsJSON struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

type TileJSON struct {
	Index     int    `json:"index"`
	Pos       [2]int `json:"pos"`
	Excursion int    `json:"excursion"`
	Color     string `json:"color"`
}

func cellPos(c spawner.Cell) [2]int {
	return [2]int{c.X, c.Y}
}
