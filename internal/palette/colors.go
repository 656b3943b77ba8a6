package palette

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// ParseHexColor converts a palette colour ("#4FC3F7" or "4FC3F7") to a tcell.Color.
func ParseHexColor(hex string) (tcell.Color, error) {
	digits := strings.TrimPrefix(hex, "#")
	if len(digits) != 6 {
		return tcell.ColorDefault, fmt.Errorf("colour %q: want 6 hex digits", hex)
	}
	rgb, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return tcell.ColorDefault, fmt.Errorf("colour %q: not hex", hex)
	}
	return tcell.NewHexColor(int32(rgb)), nil
}

// Normalize returns hex in "#RRGGBB" upper-case form, or an error if it does not parse.
func Normalize(hex string) (string, error) {
	if _, err := ParseHexColor(hex); err != nil {
		return "", err
	}
	return "#" + strings.ToUpper(strings.TrimPrefix(hex, "#")), nil
}
