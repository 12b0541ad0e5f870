package colors

import (
	"github.com/fatih/color"
)

// Style returns a 24-bit terminal style drawing text in the line color on the fill color.
func (d DisplayColors) Style() *color.Color {
	return color.RGB(int(d.Line.R), int(d.Line.G), int(d.Line.B)).
		AddBgRGB(int(d.Fill.R), int(d.Fill.G), int(d.Fill.B))
}

// Foreground returns a style drawing text in the fill color, for use on plain backgrounds.
func (d DisplayColors) Foreground() *color.Color {
	return color.RGB(int(d.Fill.R), int(d.Fill.G), int(d.Fill.B))
}

// Sprint renders text with the colors of the percentage. Colors are dropped
// when color output is disabled globally (NO_COLOR, non-terminal output).
func Sprint(percentage float64, text string) string {
	return ForPercentage(percentage).Style().Sprint(text)
}
