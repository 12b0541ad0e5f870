// Package gate evaluates quality gate rules against coverage statistics.
package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

// Rule errors.
var (
	ErrUnknownCriticality = errors.New("unknown criticality")
	ErrUnknownRuleKind    = errors.New("unknown rule kind")
	ErrUnknownStatus      = errors.New("unknown gate status")
	ErrInvalidRule        = errors.New("invalid quality gate rule")
)

const maxPercentage = 100.0

// Criticality is the status a violated rule reports.
type Criticality int

// Criticalities.
const (
	// Unstable marks the build as unstable (warning).
	Unstable Criticality = iota
	// Failure fails the build.
	Failure
)

var criticalityNames = [...]string{Unstable: "unstable", Failure: "failure"}

// ParseCriticality parses "unstable" or "failure", case-insensitively.
func ParseCriticality(name string) (Criticality, error) {
	for c, n := range criticalityNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return Criticality(c), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownCriticality, name)
}

func (c Criticality) String() string {
	if c < 0 || int(c) >= len(criticalityNames) {
		return fmt.Sprintf("criticality(%d)", int(c))
	}

	return criticalityNames[c]
}

// Status returns the item status of a violated rule of this criticality.
func (c Criticality) Status() Status {
	if c == Failure {
		return Failed
	}

	return Warning
}

// MarshalText implements encoding.TextMarshaler.
func (c Criticality) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Criticality) UnmarshalText(text []byte) error {
	parsed, err := ParseCriticality(string(text))
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}

// RuleKind selects how a rule compares values.
type RuleKind int

// Rule kinds.
const (
	// Threshold compares the current value with a fixed threshold.
	Threshold RuleKind = iota
	// NoDecrease compares the current value with the reference build.
	NoDecrease
)

var ruleKindNames = [...]string{Threshold: "threshold", NoDecrease: "no-decrease"}

// ParseRuleKind parses "threshold" or "no-decrease" ("no_decrease" is accepted too).
func ParseRuleKind(name string) (RuleKind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")

	for k, n := range ruleKindNames {
		if normalized == n {
			return RuleKind(k), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownRuleKind, name)
}

func (k RuleKind) String() string {
	if k < 0 || int(k) >= len(ruleKindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}

	return ruleKindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k RuleKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RuleKind) UnmarshalText(text []byte) error {
	parsed, err := ParseRuleKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// Rule is one quality gate. For NoDecrease rules the threshold is a tolerance:
// the value may get worse than the reference by at most that amount.
type Rule struct {
	Baseline    stats.Baseline
	Metric      coverage.Metric
	Threshold   float64
	Criticality Criticality
	Kind        RuleKind
}

// NewRule creates a rule. Thresholds of coverage metrics are clamped to [0, 100].
func NewRule(kind RuleKind, baseline stats.Baseline, metric coverage.Metric, threshold float64, criticality Criticality) Rule {
	if metric.IsCoverage() && kind == Threshold {
		threshold = min(max(threshold, 0), maxPercentage)
	}

	return Rule{
		Baseline:    baseline,
		Metric:      metric,
		Threshold:   threshold,
		Criticality: criticality,
		Kind:        kind,
	}
}

// Name names the rule after its baseline and metric, e.g. "Overall project - Line coverage".
func (r Rule) Name() string {
	return stats.Formatter{}.RuleName(r.Baseline, r.Metric)
}

func (r Rule) String() string {
	return fmt.Sprintf("%s (%s %.2f, %s)", r.Name(), r.Kind, r.Threshold, r.Criticality)
}
