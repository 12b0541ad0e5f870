package coverage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

func TestParseMetric(t *testing.T) {
	t.Parallel()

	for _, tag := range []string{"complexity-maximum", "COMPLEXITY_MAXIMUM", " Complexity-Maximum "} {
		m, err := coverage.ParseMetric(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, coverage.ComplexityMaximum, m)
	}

	_, err := coverage.ParseMetric("velocity")
	require.ErrorIs(t, err, coverage.ErrUnknownMetric)
}

func TestMetric_TagRoundTripsForAllMetrics(t *testing.T) {
	t.Parallel()

	for _, m := range coverage.Metrics() {
		parsed, err := coverage.ParseMetric(m.Tag())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestMetric_KindAndTendency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, coverage.KindCoverage, coverage.Line.Kind())
	assert.Equal(t, coverage.KindCoverage, coverage.File.Kind())
	assert.Equal(t, coverage.KindInteger, coverage.LOC.Kind())
	assert.Equal(t, coverage.KindFraction, coverage.ComplexityDensity.Kind())

	assert.Equal(t, coverage.LargerIsBetter, coverage.Mutation.Tendency())
	assert.Equal(t, coverage.SmallerIsBetter, coverage.Complexity.Tendency())

	assert.True(t, coverage.Method.IsElement())
	assert.False(t, coverage.Line.IsElement())
	assert.Equal(t, "COMPLEXITY-DENSITY", coverage.ComplexityDensity.String())
}
