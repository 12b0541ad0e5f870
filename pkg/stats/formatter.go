package stats

import (
	"fmt"
	"math/big"

	"github.com/Sumatoshi-tech/covergate/pkg/colors"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

const noCoverageAvailable = "-"

var metricDisplayNames = map[coverage.Metric]string{
	coverage.Container:         "Container coverage",
	coverage.Module:            "Module coverage",
	coverage.Package:           "Package coverage",
	coverage.File:              "File coverage",
	coverage.Class:             "Class coverage",
	coverage.Method:            "Method coverage",
	coverage.Line:              "Line coverage",
	coverage.Branch:            "Branch coverage",
	coverage.Instruction:       "Instruction coverage",
	coverage.Mutation:          "Mutation coverage",
	coverage.Complexity:        "Cyclomatic complexity",
	coverage.ComplexityMaximum: "Maximum cyclomatic complexity",
	coverage.ComplexityDensity: "Complexity density",
	coverage.LOC:               "Lines of code",
}

var metricLabels = map[coverage.Metric]string{
	coverage.Container:         "Container",
	coverage.Module:            "Module",
	coverage.Package:           "Package",
	coverage.File:              "File",
	coverage.Class:             "Class",
	coverage.Method:            "Method",
	coverage.Line:              "Line",
	coverage.Branch:            "Branch",
	coverage.Instruction:       "Instruction",
	coverage.Mutation:          "Mutation",
	coverage.Complexity:        "Complexity",
	coverage.ComplexityMaximum: "Max. Complexity",
	coverage.ComplexityDensity: "Density",
	coverage.LOC:               "LOC",
}

// Formatter renders values, metrics and baselines for reports. The zero value is ready to use.
type Formatter struct{}

// DisplayName returns the long name of a metric, e.g. "Line coverage".
func (Formatter) DisplayName(metric coverage.Metric) string {
	if name, ok := metricDisplayNames[metric]; ok {
		return name
	}

	return metric.String()
}

// Label returns the short column label of a metric, e.g. "Line".
func (Formatter) Label(metric coverage.Metric) string {
	if label, ok := metricLabels[metric]; ok {
		return label
	}

	return metric.String()
}

// BaselineName returns the human readable name of a baseline.
func (Formatter) BaselineName(baseline Baseline) string { return baseline.Title() }

// RuleName names a (baseline, metric) pair, e.g. "Overall project - Line coverage".
func (f Formatter) RuleName(baseline Baseline, metric coverage.Metric) string {
	return baseline.Title() + " - " + f.DisplayName(metric)
}

// FormatPercentage renders the covered percentage of a coverage value, e.g. "77.78%".
// Coverage without counters renders as "-".
func (Formatter) FormatPercentage(v coverage.Value) string {
	pct, ok := v.Percentage()
	if !ok {
		return noCoverageAvailable
	}

	return fmt.Sprintf("%.2f%%", pct)
}

// FormatValue renders a value in its table form: "77.78% (28/36)" for coverage,
// a signed percentage for deltas and FormatDetails otherwise.
func (f Formatter) FormatValue(v coverage.Value) string {
	if v.Kind() == coverage.KindFraction && v.Metric().Kind() != coverage.KindFraction {
		return f.FormatDelta(v.Rat())
	}

	return f.FormatDetails(v)
}

// FormatDetails renders coverage as percentage and ratio, integers plainly and
// fractions as a percentage with two decimals.
func (f Formatter) FormatDetails(v coverage.Value) string {
	switch v.Kind() {
	case coverage.KindCoverage:
		if !v.IsSet() {
			return noCoverageAvailable
		}

		return fmt.Sprintf("%s (%d/%d)", f.FormatPercentage(v), v.Covered(), v.Total())
	case coverage.KindInteger:
		return fmt.Sprintf("%d", v.Int())
	default:
		fraction, _ := v.Rat().Float64()

		return fmt.Sprintf("%.2f%%", fraction)
	}
}

// FormatDelta renders a percentage difference with an explicit sign, e.g. "+1.50%".
func (Formatter) FormatDelta(delta *big.Rat) string {
	f, _ := delta.Float64()

	return fmt.Sprintf("%+.2f%%", f)
}

// FormatAdditionalInformation renders the counters of a coverage value, e.g.
// "Covered: 28 - Missed: 8". Other values have no additional information.
func (Formatter) FormatAdditionalInformation(v coverage.Value) string {
	if v.Kind() != coverage.KindCoverage || !v.IsSet() {
		return ""
	}

	return fmt.Sprintf("Covered: %d - Missed: %d", v.Covered(), v.Missed())
}

// FormatValueWithMetric prefixes FormatDetails with the metric's display name.
func (f Formatter) FormatValueWithMetric(v coverage.Value) string {
	return f.DisplayName(v.Metric()) + ": " + f.FormatValue(v)
}

// DisplayColors returns the colors to render a value of a baseline with. Coverage
// uses the level of its percentage; deltas are green when they improve the metric
// and red when they worsen it.
func (Formatter) DisplayColors(baseline Baseline, v coverage.Value) colors.DisplayColors {
	switch v.Kind() {
	case coverage.KindCoverage:
		pct, ok := v.Percentage()
		if !ok {
			return colors.NotApplicable.Colors()
		}

		return colors.ForPercentage(pct)
	case coverage.KindFraction:
		if !baseline.IsDelta() {
			return colors.NotApplicable.Colors()
		}

		return deltaColors(v)
	default:
		return colors.NotApplicable.Colors()
	}
}

func deltaColors(v coverage.Value) colors.DisplayColors {
	sign := v.Rat().Sign()
	if v.Metric().Tendency() == coverage.SmallerIsBetter {
		sign = -sign
	}

	switch {
	case sign > 0:
		return colors.Excellent.Colors()
	case sign < 0:
		return colors.Insufficient.Colors()
	default:
		return colors.NotApplicable.Colors()
	}
}
