package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/samdwyer/tilespawner/internal/palette"
	"github.com/samdwyer/tilespawner/internal/spawner"
)

// Renderer draws walks in palette colours.
type Renderer struct {
	screen      *Screen
	palette     *palette.Palette
	statusStyle tcell.Style
}

// NewRenderer creates a renderer for the given screen.
func NewRenderer(screen *Screen, pal *palette.Palette) *Renderer {
	return &Renderer{
		screen:      screen,
		palette:     pal,
		statusStyle: tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray),
	}
}

// Render draws the walk and a status line on the bottom row. A nil walk
// draws only the status.
func (r *Renderer) Render(s *spawner.Spawner, layout Layout, status string) {
	r.screen.Frame(func() {
		if s != nil {
			for _, g := range layout.Glyphs(s) {
				r.screen.Put(g.X, g.Y, g.Rune, r.glyphStyle(g))
			}
		}
		r.RenderMessage(status)
	})
}

// RenderMessage fills the bottom row with msg.
func (r *Renderer) RenderMessage(msg string) {
	width, height := r.screen.Size()
	for x := 0; x < width; x++ {
		r.screen.Put(x, height-1, ' ', r.statusStyle)
	}
	r.screen.Text(0, height-1, msg, r.statusStyle)
}

// glyphStyle colours tiles by excursion.
func (r *Renderer) glyphStyle(g Glyph) tcell.Style {
	switch g.Kind {
	case GlyphTile:
		return baseStyle.Foreground(r.palette.TCellColor(g.Excursion))
	case GlyphPath:
		return baseStyle.Foreground(r.palette.PathColor())
	case GlyphCursor:
		return baseStyle.Foreground(r.palette.CursorColor()).Bold(true)
	default:
		return baseStyle
	}
}
