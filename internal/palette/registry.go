package palette

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// DefaultID is the palette used when none is configured.
const DefaultID = "default"

// Palette assigns a colour to each excursion of a walk.
type Palette struct {
	ID     string   `json:"id"`     // Unique identifier (e.g., "ember")
	Name   string   `json:"name"`   // Display name
	Path   string   `json:"path"`   // Hex colour for path lines
	Cursor string   `json:"cursor"` // Hex colour for the spawner marker
	Colors []string `json:"colors"` // Hex colours cycled per excursion
}

// New builds a validated palette from hex colours.
func New(id string, colors []string, path, cursor string) (*Palette, error) {
	if len(colors) == 0 {
		return nil, fmt.Errorf("palette %s: no colors", id)
	}
	p := &Palette{ID: id, Name: id, Colors: make([]string, len(colors))}
	for i, c := range colors {
		norm, err := Normalize(c)
		if err != nil {
			return nil, fmt.Errorf("palette %s: color %d: %w", id, i, err)
		}
		p.Colors[i] = norm
	}

	var err error
	if p.Path, err = Normalize(path); err != nil {
		return nil, fmt.Errorf("palette %s: path: %w", id, err)
	}
	if p.Cursor, err = Normalize(cursor); err != nil {
		return nil, fmt.Errorf("palette %s: cursor: %w", id, err)
	}
	return p, nil
}

// Hex returns the hex colour for an excursion.
func (p *Palette) Hex(excursion int) string {
	if len(p.Colors) == 0 {
		return "#FFFFFF"
	}
	if excursion < 0 {
		excursion = -excursion
	}
	return p.Colors[excursion%len(p.Colors)]
}

// TCellColor returns the tcell colour for an excursion.
func (p *Palette) TCellColor(excursion int) tcell.Color {
	return toTCell(p.Hex(excursion))
}

// PathColor returns the tcell colour used for path lines.
func (p *Palette) PathColor() tcell.Color {
	return toTCell(p.Path)
}

// CursorColor returns the tcell colour used for the spawner marker.
func (p *Palette) CursorColor() tcell.Color {
	return toTCell(p.Cursor)
}

func toTCell(hex string) tcell.Color {
	color, err := ParseHexColor(hex)
	if err != nil {
		return tcell.ColorWhite // fallback
	}
	return color
}

// Registry holds the loaded palettes.
type Registry struct {
	palettes []Palette
	byID     map[string]int
}

// NewRegistry creates a registry from palette definitions.
func NewRegistry(palettes []Palette) *Registry {
	byID := make(map[string]int, len(palettes))
	for i, p := range palettes {
		byID[p.ID] = i
	}
	return &Registry{palettes: palettes, byID: byID}
}

// LoadRegistry loads the embedded palettes.json into a registry.
func LoadRegistry() (*Registry, error) {
	palettes, err := parsePalettes(palettesJSON, "palettes.json")
	if err != nil {
		return nil, err
	}
	return NewRegistry(palettes), nil
}

// MustLoadRegistry loads the registry, panicking on error.
func MustLoadRegistry() *Registry {
	registry, err := LoadRegistry()
	if err != nil {
		panic(err)
	}
	return registry
}

// GetByID returns the palette with the given ID, or nil if not found.
func (r *Registry) GetByID(id string) *Palette {
	i, ok := r.byID[id]
	if !ok {
		return nil
	}
	return &r.palettes[i]
}

// Default returns the default palette, or the first one if it is missing.
func (r *Registry) Default() *Palette {
	if p := r.GetByID(DefaultID); p != nil {
		return p
	}
	return &r.palettes[0]
}

// IDs returns palette IDs in file order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.palettes))
	for i, p := range r.palettes {
		ids[i] = p.ID
	}
	return ids
}

// Count returns the number of palettes.
func (r *Registry) Count() int {
	return len(r.palettes)
}
