// Package colors maps coverage percentages to display colors.
package colors

import "fmt"

// Color is an opaque 24-bit RGB color.
type Color struct {
	R, G, B uint8
}

// Hex returns the CSS hex notation, e.g. "#1ea64b".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string { return c.Hex() }

// DisplayColors is a fill color with a line (text) color readable on top of it.
type DisplayColors struct {
	Fill Color `json:"fill"`
	Line Color `json:"line"`
}

// ID names a severity color independently of its RGB values.
type ID int

// Color identifiers, from best to worst coverage.
const (
	Excellent ID = iota
	VeryGood
	Good
	Average
	Inadequate
	Bad
	VeryBad
	Insufficient
	White
	Black
)

var (
	white = Color{255, 255, 255}
	black = Color{0, 0, 0}
)

type paletteEntry struct {
	name     string
	variable string
	colors   DisplayColors
}

// palette maps every identifier to its colors and CSS variable.
var palette = [...]paletteEntry{
	Excellent:    {"GREEN", "--green", DisplayColors{Color{30, 166, 75}, white}},
	VeryGood:     {"LIGHT_GREEN", "--light-green", DisplayColors{Color{75, 223, 124}, black}},
	Good:         {"LIGHT_YELLOW", "--light-yellow", DisplayColors{Color{255, 224, 102}, black}},
	Average:      {"YELLOW", "--yellow", DisplayColors{Color{255, 204, 0}, black}},
	Inadequate:   {"LIGHT_ORANGE", "--light-orange", DisplayColors{Color{254, 182, 112}, black}},
	Bad:          {"ORANGE", "--orange", DisplayColors{Color{254, 130, 10}, black}},
	VeryBad:      {"LIGHT_RED", "--light-red", DisplayColors{Color{255, 77, 101}, white}},
	Insufficient: {"RED", "--red", DisplayColors{Color{230, 0, 31}, white}},
	White:        {"WHITE", "", DisplayColors{white, black}},
	Black:        {"BLACK", "", DisplayColors{black, white}},
}

// Colors returns the display colors of the identifier.
func (id ID) Colors() DisplayColors {
	if !id.valid() {
		return palette[White].colors
	}

	return palette[id].colors
}

// CSSVariable returns the CSS custom property of a severity color, or "" for
// the neutral colors.
func (id ID) CSSVariable() string {
	if !id.valid() {
		return ""
	}

	return palette[id].variable
}

func (id ID) String() string {
	if !id.valid() {
		return palette[White].name
	}

	return palette[id].name
}

func (id ID) valid() bool { return id >= 0 && int(id) < len(palette) }

// CSSVariables returns the CSS custom properties of all severity colors, best first.
func CSSVariables() []string {
	vars := make([]string, 0, Insufficient+1)
	for id := Excellent; id <= Insufficient; id++ {
		vars = append(vars, palette[id].variable)
	}

	return vars
}
