package trend_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

func result(number int, values ...coverage.Value) trend.BuildResult {
	return trend.BuildResult{
		Build:      trend.Build{Number: number},
		Statistics: stats.New(map[stats.Baseline][]coverage.Value{stats.Project: values}),
	}
}

func line(covered, missed int) coverage.Value {
	return coverage.MustCoverage(coverage.Line, covered, missed)
}

func branch(covered, missed int) coverage.Value {
	return coverage.MustCoverage(coverage.Branch, covered, missed)
}

func TestSeriesBuilder_Empty(t *testing.T) {
	t.Parallel()

	ds := trend.SeriesBuilder{}.Build(nil)

	assert.True(t, ds.IsEmpty())
	assert.Empty(t, ds.IDs())
}

func TestSeriesBuilder_OneValuePerBuild(t *testing.T) {
	t.Parallel()

	ds := trend.SeriesBuilder{}.Build([]trend.BuildResult{
		result(1, line(1, 1), branch(3, 1)),
		result(2, line(1, 3), branch(1, 3)),
	})

	assert.Equal(t, []string{"#1", "#2"}, ds.Labels)
	assert.Equal(t, []string{"line"}, ds.IDs())
	assert.Equal(t, []float64{50, 25}, ds.Series("line"))
}

func TestSeriesBuilder_MissingValueKeepsLabel(t *testing.T) {
	t.Parallel()

	ds := trend.SeriesBuilder{Metrics: []coverage.Metric{coverage.Line, coverage.Branch}}.Build([]trend.BuildResult{
		result(1, line(1, 1)),
		result(2, line(3, 1), branch(1, 1)),
	})

	assert.Equal(t, []string{"#1", "#2"}, ds.Labels)
	assert.Equal(t, []float64{50}, ds.Series("branch"))
	assert.Equal(t, []trend.Point{{}, {Value: 50, Valid: true}}, ds.Points("branch"))
}

func TestWindow_Apply(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	results := make([]trend.BuildResult, 0, 5)
	for i := range 5 {
		r := result(i+1, line(i, 1))
		r.RecordedAt = now.AddDate(0, 0, i-4)
		results = append(results, r)
	}

	numbers := func(rs []trend.BuildResult) []int {
		out := make([]int, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.Build.Number)
		}

		return out
	}

	tests := []struct {
		name   string
		window trend.Window
		want   []int
	}{
		{"unbounded", trend.Window{}, []int{1, 2, 3, 4, 5}},
		{"max builds", trend.Window{MaxBuilds: 2}, []int{4, 5}},
		{"max builds above size", trend.Window{MaxBuilds: 10}, []int{1, 2, 3, 4, 5}},
		{"max age", trend.Window{MaxAge: 48 * time.Hour}, []int{3, 4, 5}},
		{"both", trend.Window{MaxBuilds: 1, MaxAge: 48 * time.Hour}, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, numbers(tt.window.Apply(results, now)))
		})
	}

	undated := []trend.BuildResult{result(1, line(1, 1)), result(2, line(1, 1))}
	assert.Len(t, trend.Window{MaxAge: time.Hour}.Apply(undated, now), 2)
}

func TestAxisRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		min, max float64
		wantMin  float64
		wantMax  float64
	}{
		{"all zero", 0, 0, 0, 100},
		{"flat", 50, 50, 45, 55},
		{"flat near the top", 98, 98, 93, 100},
		{"flat near the bottom", 2, 2, 0, 7},
		{"tight", 2.0, 2.1, 1.8, 2.3},
		{"very tight", 40, 40.01, 39.95, 40.06},
		{"wide", 25, 50, 18, 57},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotMin, gotMax := trend.AxisRange(tt.min, tt.max)
			assert.InDelta(t, tt.wantMin, gotMin, 1e-9)
			assert.InDelta(t, tt.wantMax, gotMax, 1e-9)
		})
	}
}

func TestChart_SingleBuild(t *testing.T) {
	t.Parallel()

	model := trend.Chart([]trend.BuildResult{result(1, line(1, 1), branch(3, 1))})

	assert.Equal(t, []int{1}, model.BuildNumbers)
	require.Len(t, model.Series, 1)
	assert.Equal(t, "Line", model.Series[0].Name)
	assert.Equal(t, "#1ea64b", model.Series[0].Color)
	assert.True(t, model.Series[0].Filled)
	assert.InDelta(t, 45.0, model.RangeMin, 1e-9)
	assert.InDelta(t, 55.0, model.RangeMax, 1e-9)
}

func TestChart_VerySmallTrend(t *testing.T) {
	t.Parallel()

	model := trend.Chart([]trend.BuildResult{
		result(1, line(20, 980), branch(3, 1)),
		result(2, line(21, 979), branch(3, 1)),
	})

	assert.Equal(t, 1.8, model.RangeMin)
	assert.Equal(t, 2.3, model.RangeMax)
}

func TestChart_Empty(t *testing.T) {
	t.Parallel()

	model := trend.Chart(nil)

	assert.Empty(t, model.Series)
	assert.Zero(t, model.RangeMin)
	assert.Equal(t, 100.0, model.RangeMax)
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	model := trend.Chart([]trend.BuildResult{
		result(1, line(1, 1)),
		result(2),
		result(3, line(3, 1)),
	}, coverage.Line, coverage.LOC)

	var buf bytes.Buffer

	require.NoError(t, trend.RenderHTML(&buf, model, trend.ThemeDark))

	html := buf.String()
	assert.Contains(t, html, "Coverage trend")
	assert.Contains(t, html, "#3")
	assert.Contains(t, html, `"-"`)
}
