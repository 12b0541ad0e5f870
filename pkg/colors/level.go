package colors

// Level is a severity band: percentages at or above Threshold use Color.
type Level struct {
	Threshold float64
	Color     ID
}

// Levels is the band table from the highest threshold down. The not-applicable
// sentinel is not part of the table; it is used for negative percentages only.
var Levels = []Level{
	{95, Excellent},
	{90, VeryGood},
	{85, Good},
	{80, Average},
	{70, Inadequate},
	{60, Bad},
	{50, VeryBad},
	{0, Insufficient},
}

// NotApplicable is the color of a missing percentage.
const NotApplicable = White

// ForPercentage returns the display colors of a coverage percentage. A negative
// percentage means there is no data. Values between two thresholds are blended
// between the matched band and the next higher band; the top band and values
// less than one point above a threshold keep their band color.
func ForPercentage(percentage float64) DisplayColors {
	if percentage < 0 {
		return NotApplicable.Colors()
	}

	for i, level := range Levels {
		if percentage < level.Threshold {
			continue
		}

		distanceLevel := percentage - level.Threshold
		if i == 0 || int(distanceLevel) == 0 {
			return level.Color.Colors()
		}

		upper := Levels[i-1]
		distanceUpper := upper.Threshold - percentage

		return Blend(distanceLevel, distanceUpper, upper.Color, level.Color)
	}

	return NotApplicable.Colors()
}

// Blend mixes the fill colors of first and second with the given weights. The
// line color is taken from the heavier color; ties go to second.
func Blend(weightFirst, weightSecond float64, first, second ID) DisplayColors {
	a, b := first.Colors(), second.Colors()

	line := b.Line
	if weightFirst > weightSecond {
		line = a.Line
	}

	total := weightFirst + weightSecond
	channel := func(x, y uint8) uint8 {
		return uint8((float64(x)*weightFirst + float64(y)*weightSecond) / total)
	}

	return DisplayColors{
		Fill: Color{
			R: channel(a.Fill.R, b.Fill.R),
			G: channel(a.Fill.G, b.Fill.G),
			B: channel(a.Fill.B, b.Fill.B),
		},
		Line: line,
	}
}
