// Package palette turns the color strings carried by factions and handle
// properties into colors.
package palette

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var named = map[string]string{
	"black":     "#000000",
	"white":     "#ffffff",
	"red":       "#ff0000",
	"green":     "#008000",
	"lime":      "#00ff00",
	"blue":      "#0000ff",
	"yellow":    "#ffff00",
	"orange":    "#ffa500",
	"purple":    "#800080",
	"cyan":      "#00ffff",
	"magenta":   "#ff00ff",
	"gray":      "#808080",
	"grey":      "#808080",
	"lightgray": "#d3d3d3",
	"lightgrey": "#d3d3d3",
	"darkgray":  "#a9a9a9",
	"darkgreen": "#006400",
	"navy":      "#000080",
	"brown":     "#a52a2a",
	"pink":      "#ffc0cb",
}

// Background is the color everything fades into.
var Background = colorful.Color{R: 0.08, G: 0.09, B: 0.1}

// Parse accepts CSS hex colors (#rgb or #rrggbb) and a small set of names.
func Parse(s string) (colorful.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return colorful.Color{}, false
	}
	if hex, ok := named[s]; ok {
		s = hex
	}
	if len(s) == 4 && s[0] == '#' {
		s = "#" + string([]byte{s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

// Resolve parses s and falls back to fallback when s is not a color.
func Resolve(s string, fallback colorful.Color) colorful.Color {
	if c, ok := Parse(s); ok {
		return c
	}
	return fallback
}

// Fade blends c toward Background by opacity in [0, 1].
func Fade(c colorful.Color, opacity float64) colorful.Color {
	switch {
	case opacity >= 1:
		return c
	case opacity <= 0:
		return Background
	}
	return Background.BlendRgb(c, opacity).Clamped()
}
