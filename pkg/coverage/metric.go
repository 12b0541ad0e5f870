// Package coverage provides the unified coverage tree: metrics, values, nodes, merging and filtering.
package coverage

import (
	"errors"
	"fmt"
	"strings"
)

// Metric identifies either an element kind of the code hierarchy or a measurable dimension.
// Element kinds are ordered from the coarsest to the finest granularity.
type Metric int

// Element kinds.
const (
	Container Metric = iota
	Module
	Package
	File
	Class
	Method

	// Line is the line coverage metric.
	Line
	// Branch is the branch (condition) coverage metric.
	Branch
	// Instruction is the byte code instruction coverage metric.
	Instruction
	// Mutation is the mutation coverage metric (killed mutants are covered).
	Mutation
	// Complexity is the cyclomatic complexity.
	Complexity
	// ComplexityMaximum is the maximum cyclomatic complexity of a single method.
	ComplexityMaximum
	// ComplexityDensity is the complexity per line of code.
	ComplexityDensity
	// LOC is the number of instrumented lines of code.
	LOC
)

// ValueKind is the tag of a Value.
type ValueKind int

// Value kinds.
const (
	KindCoverage ValueKind = iota
	KindInteger
	KindFraction
)

// Tendency describes whether larger values of a metric are better or worse.
type Tendency int

// Metric tendencies.
const (
	LargerIsBetter Tendency = iota
	SmallerIsBetter
)

// ErrUnknownMetric is returned when a metric tag cannot be resolved.
var ErrUnknownMetric = errors.New("unknown metric")

var metricTags = [...]string{
	Container:         "container",
	Module:            "module",
	Package:           "package",
	File:              "file",
	Class:             "class",
	Method:            "method",
	Line:              "line",
	Branch:            "branch",
	Instruction:       "instruction",
	Mutation:          "mutation",
	Complexity:        "complexity",
	ComplexityMaximum: "complexity-maximum",
	ComplexityDensity: "complexity-density",
	LOC:               "loc",
}

// Metrics returns all metrics in declaration order.
func Metrics() []Metric {
	all := make([]Metric, 0, len(metricTags))
	for m := range metricTags {
		all = append(all, Metric(m))
	}

	return all
}

// ParseMetric resolves a metric from its tag. Matching ignores case and accepts '_' for '-'.
func ParseMetric(tag string) (Metric, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), "_", "-")

	for m, t := range metricTags {
		if t == normalized {
			return Metric(m), nil
		}
	}

	return Container, fmt.Errorf("%w: %q", ErrUnknownMetric, tag)
}

// Tag returns the lowercase, dash separated identifier of the metric.
func (m Metric) Tag() string {
	if m < 0 || int(m) >= len(metricTags) {
		return fmt.Sprintf("metric(%d)", int(m))
	}

	return metricTags[m]
}

// String returns the upper case name used in value representations, e.g. "LINE".
func (m Metric) String() string {
	return strings.ToUpper(m.Tag())
}

// IsElement reports whether the metric names an element kind of the tree.
func (m Metric) IsElement() bool {
	return m >= Container && m <= Method
}

// IsCoverage reports whether values of the metric are covered/missed pairs.
func (m Metric) IsCoverage() bool {
	return m.Kind() == KindCoverage
}

// Kind returns the value kind carried by the metric.
func (m Metric) Kind() ValueKind {
	switch m {
	case Complexity, ComplexityMaximum, LOC:
		return KindInteger
	case ComplexityDensity:
		return KindFraction
	default:
		return KindCoverage
	}
}

// Tendency returns whether larger values are better for this metric.
func (m Metric) Tendency() Tendency {
	switch m {
	case Complexity, ComplexityMaximum, ComplexityDensity, LOC:
		return SmallerIsBetter
	default:
		return LargerIsBetter
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.Tag()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}
