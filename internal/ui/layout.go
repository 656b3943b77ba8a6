package ui

import (
	"strings"

	"github.com/samdwyer/tilespawner/internal/spawner"
)

// Display runes.
const (
	RuneTile       = '■'
	RuneCursor     = '@'
	RunePathH      = '─'
	RunePathV      = '│'
	RuneEmpty      = ' '
	columnsPerCell = 2 // Terminal cells are roughly twice as tall as wide
	rowsPerCell    = 2 // Leaves a row between cells for vertical path lines
)

// GlyphKind identifies what a glyph depicts.
type GlyphKind int

const (
	GlyphTile GlyphKind = iota
	GlyphPath
	GlyphCursor
)

// Glyph is one rune placed at a screen position.
type Glyph struct {
	X, Y      int
	Rune      rune
	Kind      GlyphKind
	Excursion int
}

// Layout maps grid cells to screen positions. World Y grows upward, screen
// rows grow downward.
type Layout struct {
	Origin     spawner.Cell // Lowest in-bounds cell
	Cols, Rows int          // In-bounds cell counts
	DrawPath   bool
}

// NewLayout creates a layout covering bounds.
func NewLayout(bounds spawner.Bounds, drawPath bool) Layout {
	lo, hi, ok := bounds.CellRange()
	if !ok {
		return Layout{DrawPath: drawPath}
	}
	return Layout{
		Origin:   lo,
		Cols:     hi.X - lo.X + 1,
		Rows:     hi.Y - lo.Y + 1,
		DrawPath: drawPath,
	}
}

// GridSizeFor returns how many cells fit on a width x height screen.
func GridSizeFor(width, height int) (cols, rows int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	cols = (width-1)/columnsPerCell + 1
	rows = (height-1)/rowsPerCell + 1
	return cols, rows
}

// ScreenSize returns the screen area the layout occupies.
func (l Layout) ScreenSize() (width, height int) {
	if l.Cols == 0 || l.Rows == 0 {
		return 0, 0
	}
	return (l.Cols-1)*columnsPerCell + 1, (l.Rows-1)*rowsPerCell + 1
}

// ToScreen returns the screen position of a cell.
func (l Layout) ToScreen(c spawner.Cell) (x, y int) {
	top := l.Origin.Y + l.Rows - 1
	return (c.X - l.Origin.X) * columnsPerCell, (top - c.Y) * rowsPerCell
}

// Glyphs returns everything to draw for the walk: path lines first, then
// tiles, then the spawner marker.
func (l Layout) Glyphs(s *spawner.Spawner) []Glyph {
	tiles := s.Tiles()
	glyphs := make([]Glyph, 0, len(tiles)*2+1)

	if l.DrawPath {
		for _, seg := range s.Segments() {
			x1, y1 := l.ToScreen(seg.From)
			x2, y2 := l.ToScreen(seg.To)
			g := Glyph{X: (x1 + x2) / 2, Y: (y1 + y2) / 2, Kind: GlyphPath, Excursion: seg.Excursion}
			if y1 == y2 {
				g.Rune = RunePathH
			} else {
				g.Rune = RunePathV
			}
			glyphs = append(glyphs, g)
		}
	}

	for _, tile := range tiles {
		x, y := l.ToScreen(tile.Cell)
		glyphs = append(glyphs, Glyph{X: x, Y: y, Rune: RuneTile, Kind: GlyphTile, Excursion: tile.Excursion})
	}

	if s.Started() && !s.Done() {
		x, y := l.ToScreen(s.Current())
		glyphs = append(glyphs, Glyph{X: x, Y: y, Rune: RuneCursor, Kind: GlyphCursor, Excursion: s.Excursion()})
	}
	return glyphs
}

// ASCII renders the walk as plain text, one line per screen row.
func (l Layout) ASCII(s *spawner.Spawner) string {
	width, height := l.ScreenSize()
	if width == 0 {
		return ""
	}
	grid := make([][]rune, height)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(string(RuneEmpty), width))
	}
	for _, g := range l.Glyphs(s) {
		if g.Y >= 0 && g.Y < height && g.X >= 0 && g.X < width {
			grid[g.Y][g.X] = g.Rune
		}
	}

	var b strings.Builder
	for _, row := range grid {
		b.WriteString(strings.TrimRight(string(row), string(RuneEmpty)))
		b.WriteByte('\n')
	}
	return b.String()
}
