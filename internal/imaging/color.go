package imaging

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Fallback is the stroke color used for labels missing from a palette.
var Fallback = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// ParseColor parses a hex color string such as "#00FF00" or "#0f0".
//
// The alpha channel is always opaque. Empty strings and malformed hex values
// return an error.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Palette maps a label (compared case-insensitively) to a hex color string.
type Palette map[string]string

// Validate checks that every palette entry parses.
func (p Palette) Validate() error {
	for label, hex := range p {
		if _, err := ParseColor(hex); err != nil {
			return fmt.Errorf("palette entry %q: %w", label, err)
		}
	}
	return nil
}

// CategoryColor returns the palette color for label, or Fallback when the label
// is unknown or its color does not parse.
func CategoryColor(p Palette, label string) color.NRGBA {
	for k, hex := range p {
		if !strings.EqualFold(k, label) {
			continue
		}
		c, err := ParseColor(hex)
		if err != nil {
			return Fallback
		}
		return c
	}
	return Fallback
}
