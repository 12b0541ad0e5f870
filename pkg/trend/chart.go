package trend

import (
	"encoding/json"

	"github.com/Sumatoshi-tech/covergate/pkg/colors"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

// LineSeries is one line of a trend chart.
type LineSeries struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Data   []Point `json:"data"`
	Color  string  `json:"color"`
	Filled bool    `json:"filled"`
}

// LinesChartModel is a renderer independent description of a trend chart.
type LinesChartModel struct {
	Labels       []string     `json:"domainAxisLabels"`
	BuildNumbers []int        `json:"buildNumbers"`
	Series       []LineSeries `json:"series"`
	RangeMin     float64      `json:"rangeMin"`
	RangeMax     float64      `json:"rangeMax"`
}

// seriesColors assigns palette colors to the series; unlisted metrics use the chart theme.
var seriesColors = map[coverage.Metric]colors.ID{
	coverage.Line:        colors.Excellent,
	coverage.Branch:      colors.VeryGood,
	coverage.Instruction: colors.Good,
	coverage.Mutation:    colors.Inadequate,
	coverage.Complexity:  colors.VeryBad,
}

// Chart builds the chart model of the results (oldest first) for the given
// metrics; no metrics means line coverage only. An empty input yields a model
// without series spanning [0, 100].
func Chart(results []BuildResult, metrics ...coverage.Metric) LinesChartModel {
	builder := SeriesBuilder{Metrics: metrics}
	ds := builder.Build(results)

	model := LinesChartModel{
		Labels:       ds.Labels,
		BuildNumbers: ds.BuildNumbers,
		RangeMax:     fullRangeMax,
	}

	if ds.IsEmpty() {
		return model
	}

	var f stats.Formatter

	for _, m := range builder.metrics() {
		series := LineSeries{
			ID:     m.Tag(),
			Name:   f.Label(m),
			Data:   ds.Points(m.Tag()),
			Filled: m.IsCoverage(),
		}

		if id, ok := seriesColors[m]; ok {
			series.Color = id.Colors().Fill.Hex()
		}

		model.Series = append(model.Series, series)
	}

	if minimum, maximum, ok := ds.Extrema(); ok {
		model.RangeMin, model.RangeMax = AxisRange(minimum, maximum)
	}

	return model
}

// MarshalJSON writes the value of a point, or null for a build without one.
func (p Point) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}

	return json.Marshal(p.Value)
}
