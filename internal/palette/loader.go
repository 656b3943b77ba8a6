package palette

import (
	"encoding/json"
	"fmt"
)

// palettesFile represents the structure of palettes.json.
type palettesFile struct {
	Palettes []Palette `json:"palettes"`
}

// parsePalettes decodes a palette set and validates every entry. source
// names the data in errors.
func parsePalettes(data []byte, source string) ([]Palette, error) {
	var file palettesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse palettes from %s: %w", source, err)
	}
	if len(file.Palettes) == 0 {
		return nil, fmt.Errorf("no palettes in %s", source)
	}

	seen := make(map[string]bool, len(file.Palettes))
	palettes := make([]Palette, 0, len(file.Palettes))
	for _, def := range file.Palettes {
		if def.ID == "" {
			return nil, fmt.Errorf("%s: palette without an id", source)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("%s: duplicate palette %s", source, def.ID)
		}
		seen[def.ID] = true

		p, err := New(def.ID, def.Colors, def.Path, def.Cursor)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		if def.Name != "" {
			p.Name = def.Name
		}
		palettes = append(palettes, *p)
	}
	return palettes, nil
}
