package sheets

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// DefaultBackground is what Sheets renders for a cell with no fill.
const DefaultBackground = "#ffffff"

// HexFromColor renders a Sheets color as lowercase "#rrggbb". A nil color is the
// default white background.
func HexFromColor(c *sheets.Color) string {
	if c == nil {
		return DefaultBackground
	}
	return fmt.Sprintf("#%02x%02x%02x", channel(c.Red), channel(c.Green), channel(c.Blue))
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// ColorFromHex parses "#rrggbb" (the leading # is optional).
func ColorFromHex(hex string) (*sheets.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return nil, fmt.Errorf("invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return &sheets.Color{
		Red:   float64((v>>16)&0xff) / 255,
		Green: float64((v>>8)&0xff) / 255,
		Blue:  float64(v&0xff) / 255,
		Alpha: 1,
	}, nil
}

// NormalizeHex lowercases a color and ensures the leading #.
func NormalizeHex(hex string) string {
	h := strings.ToLower(strings.TrimSpace(hex))
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "#") {
		h = "#" + h
	}
	return h
}
