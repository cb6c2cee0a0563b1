package palette

import (
	"image/color"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// displayHex is how each label is drawn on diagnostic overlays.
var displayHex = map[string]string{
	White:   "#f5f5f5",
	Black:   "#202020",
	Red:     "#e03030",
	Brown:   "#8b5a2b",
	Orange:  "#ff8c1a",
	Yellow:  "#ffd700",
	Green:   "#2eb82e",
	Blue:    "#1f5fd6",
	Purple:  "#8e44ad",
	Unknown: "#ff00ff",
}

// DisplayColor returns the overlay color for a label, case-insensitively.
// Labels outside the palette (e.g. numbered classes from a remote model) use
// the Unknown color.
func DisplayColor(label string) color.RGBA {
	hex, ok := displayHex[strings.ToLower(label)]
	if !ok {
		hex = displayHex[Unknown]
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{R: 255, B: 255, A: 255}
	}

	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
