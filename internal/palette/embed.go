// Package palette provides the embedded excursion colour palettes and colour parsing.
package palette

import _ "embed"

// palettesJSON is the bundled palette set.
//
//go:embed palettes.json
var palettesJSON []byte
