package stats_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/covergate/pkg/colors"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

func TestFormatter_Values(t *testing.T) {
	t.Parallel()

	var f stats.Formatter

	line := coverage.MustCoverage(coverage.Line, 28, 8)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"value", f.FormatValue(line), "77.78% (28/36)"},
		{"percentage", f.FormatPercentage(line), "77.78%"},
		{"empty coverage", f.FormatValue(coverage.EmptyCoverage(coverage.Line)), "-"},
		{"integer", f.FormatDetails(coverage.NewInteger(coverage.Complexity, 12)), "12"},
		{"fraction", f.FormatDetails(coverage.NewFraction(coverage.ComplexityDensity, 1, 2)), "0.50%"},
		{"delta", f.FormatDelta(big.NewRat(3, 2)), "+1.50%"},
		{"negative delta", f.FormatValue(coverage.NewFraction(coverage.Line, -10, 1)), "-10.00%"},
		{"additional information", f.FormatAdditionalInformation(line), "Covered: 28 - Missed: 8"},
		{"no additional information", f.FormatAdditionalInformation(coverage.NewInteger(coverage.LOC, 3)), ""},
		{"with metric", f.FormatValueWithMetric(line), "Line coverage: 77.78% (28/36)"},
		{"rule name", f.RuleName(stats.Project, coverage.Line), "Overall project - Line coverage"},
		{"label", f.Label(coverage.ComplexityMaximum), "Max. Complexity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestFormatter_DisplayColors(t *testing.T) {
	t.Parallel()

	var f stats.Formatter

	line := coverage.MustCoverage(coverage.Line, 28, 8)
	pct, _ := line.Percentage()

	assert.Equal(t, colors.ForPercentage(pct), f.DisplayColors(stats.Project, line))
	assert.Equal(t, colors.White.Colors(),
		f.DisplayColors(stats.Project, coverage.EmptyCoverage(coverage.Line)))
	assert.Equal(t, colors.Excellent.Colors(),
		f.DisplayColors(stats.ModifiedLinesDelta, coverage.NewFraction(coverage.Line, 5, 1)))
	assert.Equal(t, colors.Insufficient.Colors(),
		f.DisplayColors(stats.ModifiedLinesDelta, coverage.NewFraction(coverage.Line, -5, 1)))
	assert.Equal(t, colors.Insufficient.Colors(),
		f.DisplayColors(stats.ModifiedLinesDelta, coverage.NewFraction(coverage.Complexity, 2, 1)))
	assert.Equal(t, colors.White.Colors(),
		f.DisplayColors(stats.Project, coverage.NewInteger(coverage.LOC, 10)))
}
