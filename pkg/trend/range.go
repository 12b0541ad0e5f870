package trend

import "math"

const (
	fullRangeMax    = 100.0
	flatMargin      = 5.0
	tightRange      = 0.5
	tightMinMargin  = 0.05
	roundingEpsilon = 1e-9
)

// AxisRange returns the y-axis bounds for series with the given extrema. The
// range hugs tight series so small changes stay visible and never leaves [0, 100].
func AxisRange(minimum, maximum float64) (rangeMin, rangeMax float64) {
	spread := maximum - minimum

	switch {
	case maximum == 0 && minimum == 0:
		return 0, fullRangeMax
	case spread == 0:
		rangeMin = math.Floor(minimum - flatMargin)
		rangeMax = math.Ceil(maximum + flatMargin)
	case spread < tightRange:
		margin := max(tightMinMargin, 2*spread)
		rangeMax = ceilHundredths(maximum + margin)
		rangeMin = floorHundredths(minimum - margin)
	default:
		margin := math.Ceil(spread) / 4
		rangeMax = math.Ceil(maximum + margin)
		rangeMin = math.Floor(minimum - margin)
	}

	return max(rangeMin, 0), min(rangeMax, fullRangeMax)
}

// ceilHundredths and floorHundredths round to two decimals, tolerating the
// representation error of the float sum they are applied to.
func ceilHundredths(v float64) float64 {
	return math.Ceil(v*100-roundingEpsilon) / 100
}

func floorHundredths(v float64) float64 {
	return math.Floor(v*100+roundingEpsilon) / 100
}
