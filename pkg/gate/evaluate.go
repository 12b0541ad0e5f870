package gate

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

// Status is the outcome of a rule or of a whole evaluation, ordered by severity.
type Status int

// Statuses, from least to most severe.
const (
	Inactive Status = iota
	Passed
	Warning
	Failed
)

var statusNames = [...]string{Inactive: "INACTIVE", Passed: "PASSED", Warning: "WARNING", Failed: "FAILED"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}

	return statusNames[s]
}

// ParseStatus parses a status name such as "PASSED", ignoring case.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return Status(s), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// IsWorseThan reports whether s is more severe than other.
func (s Status) IsWorseThan(other Status) bool { return s > other }

// IsSuccessful reports whether the status does not fail a build.
func (s Status) IsSuccessful() bool { return s != Failed }

const notAvailable = "n/a"

// Item is the outcome of one rule.
type Item struct {
	Rule    Rule   `json:"-"       yaml:"-"`
	Name    string `json:"name"    yaml:"name"`
	Status  Status `json:"status"  yaml:"status"`
	Actual  string `json:"actual"  yaml:"actual"`
	Message string `json:"message" yaml:"message"`
}

// Result is the outcome of a quality gate evaluation.
type Result struct {
	Status   Status   `json:"status"             yaml:"status"`
	Items    []Item   `json:"items"              yaml:"items"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// IsSuccessful reports whether no rule failed.
func (r Result) IsSuccessful() bool { return r.Status.IsSuccessful() }

// Messages returns the message of every item in rule order.
func (r Result) Messages() []string {
	messages := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		messages = append(messages, item.Message)
	}

	return messages
}

func (r *Result) add(rule Rule, status Status, actual, detail string) {
	message := fmt.Sprintf("%s: %s - %s", rule.Name(), status, actual)
	if detail != "" {
		message += " (" + detail + ")"
	}

	r.Items = append(r.Items, Item{
		Rule:    rule,
		Name:    rule.Name(),
		Status:  status,
		Actual:  actual,
		Message: message,
	})

	if status.IsWorseThan(r.Status) {
		r.Status = status
	}
}

// Evaluate checks every rule against the current statistics. The reference
// statistics are only consulted by NoDecrease rules and may be nil. Evaluation
// has no side effects; the overall status is Inactive when no rule applies.
func Evaluate(rules []Rule, current, reference *stats.Statistics) Result {
	var result Result

	for _, rule := range rules {
		switch rule.Kind {
		case NoDecrease:
			evaluateNoDecrease(&result, rule, current, reference)
		default:
			evaluateThreshold(&result, rule, current)
		}
	}

	return result
}

func lookup(s *stats.Statistics, rule Rule) (coverage.Value, bool) {
	if s == nil {
		return coverage.Value{}, false
	}

	return s.Value(rule.Baseline, rule.Metric)
}

func evaluateThreshold(result *Result, rule Rule, current *stats.Statistics) {
	var f stats.Formatter

	value, ok := lookup(current, rule)
	if !ok {
		result.add(rule, Inactive, notAvailable, "")

		return
	}

	status := Passed
	if value.IsOutOfValidRange(rule.Threshold) {
		status = rule.Criticality.Status()
	}

	result.add(rule, status, f.FormatValue(value), fmt.Sprintf("threshold %.2f", rule.Threshold))
}

func evaluateNoDecrease(result *Result, rule Rule, current, reference *stats.Statistics) {
	var f stats.Formatter

	previous, ok := lookup(reference, rule)
	if !ok {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: no reference build with this value, rule skipped", rule.Name()))
		result.add(rule, Inactive, notAvailable, "no reference")

		return
	}

	value, ok := lookup(current, rule)
	if !ok {
		result.add(rule, Inactive, notAvailable, "")

		return
	}

	delta, err := value.Delta(previous)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", rule.Name(), err))
		result.add(rule, Inactive, f.FormatValue(value), "not comparable with reference")

		return
	}

	status := Passed
	if worsened(delta, rule.Metric, rule.Threshold) {
		status = rule.Criticality.Status()
	}

	result.add(rule, status, f.FormatValue(value), "delta "+f.FormatDelta(delta))
}

// worsened reports whether the change exceeds the tolerance in the bad direction of the metric.
func worsened(delta *big.Rat, metric coverage.Metric, tolerance float64) bool {
	change, _ := delta.Float64()
	if metric.Tendency() == coverage.SmallerIsBetter {
		change = -change
	}

	return change < -tolerance
}
