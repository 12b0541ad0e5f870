// Package trend builds coverage trend series over a sequence of builds and renders them as charts.
package trend

import (
	"strconv"
	"time"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

// Build identifies one historical build.
type Build struct {
	Number int    `json:"number"`
	Label  string `json:"label,omitempty"`
}

// DisplayName returns the label of the build, "#<number>" when no label is set.
func (b Build) DisplayName() string {
	if b.Label != "" {
		return b.Label
	}

	return "#" + strconv.Itoa(b.Number)
}

// BuildResult pairs a build with its statistics snapshot.
type BuildResult struct {
	Build      Build
	RecordedAt time.Time
	Statistics *stats.Statistics
}

// Window bounds the builds of a trend. Zero fields do not limit.
type Window struct {
	MaxBuilds int
	MaxAge    time.Duration
}

// Apply returns the newest results (ordered oldest first) that fit the window.
// Results without a recording time are never dropped by MaxAge.
func (w Window) Apply(results []BuildResult, now time.Time) []BuildResult {
	start := 0

	if w.MaxAge > 0 {
		cutoff := now.Add(-w.MaxAge)

		for start < len(results) {
			recorded := results[start].RecordedAt
			if recorded.IsZero() || !recorded.Before(cutoff) {
				break
			}

			start++
		}
	}

	if w.MaxBuilds > 0 && len(results)-start > w.MaxBuilds {
		start = len(results) - w.MaxBuilds
	}

	return results[start:]
}

// Point is one sample of a series. Builds without a value keep their slot with Valid unset.
type Point struct {
	Value float64
	Valid bool
}

// DataSet holds one label per build and the aligned samples of every series.
type DataSet struct {
	Labels       []string
	BuildNumbers []int
	ids          []string
	series       map[string][]Point
}

// IsEmpty reports whether the data set has no builds.
func (d *DataSet) IsEmpty() bool { return len(d.Labels) == 0 }

// IDs returns the identifiers of all series, in configuration order.
func (d *DataSet) IDs() []string { return d.ids }

// Points returns the samples of a series aligned with Labels.
func (d *DataSet) Points(id string) []Point { return d.series[id] }

// Series returns the valid values of a series in build order.
func (d *DataSet) Series(id string) []float64 {
	var values []float64

	for _, p := range d.series[id] {
		if p.Valid {
			values = append(values, p.Value)
		}
	}

	return values
}

// Extrema returns the minimum and maximum over all valid samples.
func (d *DataSet) Extrema() (minimum, maximum float64, ok bool) {
	for _, id := range d.ids {
		for _, p := range d.series[id] {
			if !p.Valid {
				continue
			}

			if !ok {
				minimum, maximum, ok = p.Value, p.Value, true

				continue
			}

			minimum = min(minimum, p.Value)
			maximum = max(maximum, p.Value)
		}
	}

	return minimum, maximum, ok
}

// SeriesBuilder extracts one scalar per build and metric from the project baseline.
type SeriesBuilder struct {
	// Metrics lists the series to build; empty means line coverage only.
	Metrics []coverage.Metric
}

func (b SeriesBuilder) metrics() []coverage.Metric {
	if len(b.Metrics) == 0 {
		return []coverage.Metric{coverage.Line}
	}

	return b.Metrics
}

// Build creates the data set of the results, which must be ordered oldest first.
func (b SeriesBuilder) Build(results []BuildResult) *DataSet {
	ds := &DataSet{series: make(map[string][]Point)}
	if len(results) == 0 {
		return ds
	}

	metrics := b.metrics()
	for _, m := range metrics {
		ds.ids = append(ds.ids, m.Tag())
	}

	for _, result := range results {
		ds.Labels = append(ds.Labels, result.Build.DisplayName())
		ds.BuildNumbers = append(ds.BuildNumbers, result.Build.Number)

		for _, m := range metrics {
			ds.series[m.Tag()] = append(ds.series[m.Tag()], sample(result.Statistics, m))
		}
	}

	return ds
}

func sample(s *stats.Statistics, metric coverage.Metric) Point {
	if s == nil {
		return Point{}
	}

	v, ok := s.Value(stats.Project, metric)
	if !ok {
		return Point{}
	}

	scalar, ok := v.Scalar()
	if !ok {
		return Point{}
	}

	return Point{Value: scalar, Valid: true}
}
