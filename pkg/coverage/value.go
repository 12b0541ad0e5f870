package coverage

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Value errors.
var (
	ErrNegativeCounter    = errors.New("coverage counters must not be negative")
	ErrMetricMismatch     = errors.New("values of different metrics cannot be combined")
	ErrIncompatibleValues = errors.New("coverage values with different totals cannot be compared")
	ErrNoPercentage       = errors.New("coverage without any counters has no percentage")
	ErrInvalidValue       = errors.New("invalid value representation")
)

const (
	percentScale  = 100
	notApplicable = "n/a"
)

// Value is a measured value of a Metric. It is a tagged union over a covered/missed
// pair, an integer, and an exact fraction. The variant normally follows the metric's
// Kind; deltas of any metric are fractions. Values are immutable.
type Value struct {
	metric   Metric
	kind     ValueKind
	covered  int
	missed   int
	integer  int
	fraction *big.Rat
}

// NewCoverage creates a coverage value. Both counters must be non-negative.
func NewCoverage(metric Metric, covered, missed int) (Value, error) {
	mustKind(metric, KindCoverage)

	if covered < 0 || missed < 0 {
		return Value{}, fmt.Errorf("%w: %s %d/%d", ErrNegativeCounter, metric, covered, missed)
	}

	return Value{metric: metric, kind: KindCoverage, covered: covered, missed: missed}, nil
}

// MustCoverage is like NewCoverage but panics on negative counters.
func MustCoverage(metric Metric, covered, missed int) Value {
	v, err := NewCoverage(metric, covered, missed)
	if err != nil {
		panic(err)
	}

	return v
}

// EmptyCoverage returns a coverage value without any counters.
func EmptyCoverage(metric Metric) Value {
	mustKind(metric, KindCoverage)

	return Value{metric: metric, kind: KindCoverage}
}

// NewInteger creates an integer value such as a complexity or a line count.
func NewInteger(metric Metric, v int) Value {
	mustKind(metric, KindInteger)

	return Value{metric: metric, kind: KindInteger, integer: v}
}

// NewFraction creates a fraction value num/den. A zero denominator panics.
func NewFraction(metric Metric, num, den int64) Value {
	return NewFractionRat(metric, big.NewRat(num, den))
}

// NewFractionRat creates a fraction value from a rational number; the argument is copied.
// Any metric may carry a fraction, which is how differences of coverage metrics are kept.
func NewFractionRat(metric Metric, r *big.Rat) Value {
	return Value{metric: metric, kind: KindFraction, fraction: new(big.Rat).Set(r)}
}

func mustKind(metric Metric, kind ValueKind) {
	if metric.Kind() != kind {
		panic(fmt.Sprintf("coverage: metric %s does not carry value kind %d", metric, kind))
	}
}

// Metric returns the metric of the value.
func (v Value) Metric() Metric { return v.metric }

// Kind returns the active variant.
func (v Value) Kind() ValueKind { return v.kind }

// Covered returns the covered counter of a coverage value.
func (v Value) Covered() int { return v.covered }

// Missed returns the missed counter of a coverage value.
func (v Value) Missed() int { return v.missed }

// Total returns covered + missed.
func (v Value) Total() int { return v.covered + v.missed }

// IsSet reports whether a coverage value carries any counters.
func (v Value) IsSet() bool { return v.Total() > 0 }

// Int returns the integer of an integer value.
func (v Value) Int() int { return v.integer }

// Rat returns a copy of the fraction of a fraction value.
func (v Value) Rat() *big.Rat {
	if v.fraction == nil {
		return new(big.Rat)
	}

	return new(big.Rat).Set(v.fraction)
}

// Percentage returns covered*100/total. It is undefined (ok is false) for
// non-coverage values and for coverage without counters.
func (v Value) Percentage() (float64, bool) {
	r, ok := v.percentageRat()
	if !ok {
		return 0, false
	}

	f, _ := r.Float64()

	return f, true
}

func (v Value) percentageRat() (*big.Rat, bool) {
	if v.Kind() != KindCoverage || v.Total() == 0 {
		return nil, false
	}

	return big.NewRat(int64(v.covered)*percentScale, int64(v.Total())), true
}

// Scalar returns the value as a single number: the percentage of a coverage,
// the integer, or the fraction.
func (v Value) Scalar() (float64, bool) {
	switch v.Kind() {
	case KindCoverage:
		return v.Percentage()
	case KindInteger:
		return float64(v.integer), true
	case KindFraction:
		f, _ := v.Rat().Float64()

		return f, true
	default:
		return 0, false
	}
}

// Add sums two values of the same metric.
func (v Value) Add(other Value) (Value, error) {
	if !v.sameVariant(other) {
		return Value{}, fmt.Errorf("%w: %s + %s", ErrMetricMismatch, v.metric, other.metric)
	}

	switch v.Kind() {
	case KindCoverage:
		return Value{metric: v.metric, kind: v.kind, covered: v.covered + other.covered, missed: v.missed + other.missed}, nil
	case KindInteger:
		return Value{metric: v.metric, kind: v.kind, integer: v.integer + other.integer}, nil
	case KindFraction:
		return Value{metric: v.metric, kind: v.kind, fraction: new(big.Rat).Add(v.Rat(), other.Rat())}, nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrInvalidValue, v.metric)
	}
}

// Max returns the larger of two values of the same metric. Coverage values
// must have the same total; the one with more covered items wins.
func (v Value) Max(other Value) (Value, error) {
	if !v.sameVariant(other) {
		return Value{}, fmt.Errorf("%w: max(%s, %s)", ErrMetricMismatch, v.metric, other.metric)
	}

	switch v.Kind() {
	case KindCoverage:
		if v.Total() != other.Total() {
			return Value{}, fmt.Errorf("%w: %s vs %s", ErrIncompatibleValues, v, other)
		}

		if other.covered > v.covered {
			return other, nil
		}

		return v, nil
	case KindInteger:
		if other.integer > v.integer {
			return other, nil
		}

		return v, nil
	case KindFraction:
		if other.Rat().Cmp(v.Rat()) > 0 {
			return other, nil
		}

		return v, nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrInvalidValue, v.metric)
	}
}

// Delta returns v - other. For coverage values the difference of the percentages is returned.
func (v Value) Delta(other Value) (*big.Rat, error) {
	if !v.sameVariant(other) {
		return nil, fmt.Errorf("%w: %s - %s", ErrMetricMismatch, v.metric, other.metric)
	}

	switch v.Kind() {
	case KindCoverage:
		current, ok := v.percentageRat()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoPercentage, v)
		}

		reference, ok := other.percentageRat()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoPercentage, other)
		}

		return current.Sub(current, reference), nil
	case KindInteger:
		return big.NewRat(int64(v.integer-other.integer), 1), nil
	case KindFraction:
		return new(big.Rat).Sub(v.Rat(), other.Rat()), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, v.metric)
	}
}

// IsOutOfValidRange reports whether the value violates the given threshold.
// Coverage is out of range below the threshold percentage (or without counters),
// integers above it, and fractions depending on the metric's tendency.
func (v Value) IsOutOfValidRange(threshold float64) bool {
	switch v.Kind() {
	case KindCoverage:
		pct, ok := v.Percentage()

		return !ok || pct < threshold
	case KindInteger:
		return float64(v.integer) > threshold
	case KindFraction:
		f, _ := v.Rat().Float64()
		if v.metric.Tendency() == LargerIsBetter {
			return f < threshold
		}

		return f > threshold
	default:
		return true
	}
}

func (v Value) sameVariant(other Value) bool {
	return v.metric == other.metric && v.kind == other.kind
}

// Equal reports whether both values have the same metric and content.
func (v Value) Equal(other Value) bool {
	if !v.sameVariant(other) {
		return false
	}

	switch v.Kind() {
	case KindCoverage:
		return v.covered == other.covered && v.missed == other.missed
	case KindInteger:
		return v.integer == other.integer
	default:
		return v.Rat().Cmp(other.Rat()) == 0
	}
}

// String renders the value for humans, e.g. "LINE: 77.78% (28/36)".
func (v Value) String() string {
	switch v.Kind() {
	case KindCoverage:
		pct, ok := v.Percentage()
		if !ok {
			return fmt.Sprintf("%s: %s", v.metric, notApplicable)
		}

		return fmt.Sprintf("%s: %.2f%% (%d/%d)", v.metric, pct, v.covered, v.Total())
	case KindInteger:
		return fmt.Sprintf("%s: %d", v.metric, v.integer)
	default:
		return fmt.Sprintf("%s: %s", v.metric, v.Rat().FloatString(2))
	}
}

// Serialize renders the value in its exact, parseable form, e.g. "LINE: 28/36".
// Fractions of metrics that are not fractions by nature carry an explicit sign,
// e.g. "LINE: +3/2".
func (v Value) Serialize() string {
	switch v.Kind() {
	case KindCoverage:
		return fmt.Sprintf("%s: %d/%d", v.metric, v.covered, v.Total())
	case KindInteger:
		return fmt.Sprintf("%s: %d", v.metric, v.integer)
	default:
		r := v.Rat()
		if v.metric.Kind() != KindFraction && r.Sign() >= 0 {
			return fmt.Sprintf("%s: +%s", v.metric, r.String())
		}

		return fmt.Sprintf("%s: %s", v.metric, r.String())
	}
}

// ParseValue is the inverse of Serialize.
func ParseValue(s string) (Value, error) {
	tag, raw, ok := strings.Cut(s, ":")
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}

	metric, err := ParseMetric(tag)
	if err != nil {
		return Value{}, err
	}

	raw = strings.TrimSpace(raw)

	kind := metric.Kind()
	if kind != KindFraction && (strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-")) {
		kind = KindFraction
	}

	switch kind {
	case KindCoverage:
		return parseCoverage(metric, raw)
	case KindInteger:
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return Value{}, fmt.Errorf("%w: %q: %w", ErrInvalidValue, s, convErr)
		}

		return NewInteger(metric, n), nil
	default:
		r, ok := new(big.Rat).SetString(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, s)
		}

		return NewFractionRat(metric, r), nil
	}
}

func parseCoverage(metric Metric, raw string) (Value, error) {
	coveredText, totalText, ok := strings.Cut(raw, "/")
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
	}

	covered, err := strconv.Atoi(strings.TrimSpace(coveredText))
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q: %w", ErrInvalidValue, raw, err)
	}

	total, err := strconv.Atoi(strings.TrimSpace(totalText))
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q: %w", ErrInvalidValue, raw, err)
	}

	if covered > total {
		return Value{}, fmt.Errorf("%w: covered exceeds total in %q", ErrInvalidValue, raw)
	}

	return NewCoverage(metric, covered, total-covered)
}

// MarshalText implements encoding.TextMarshaler using Serialize.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.Serialize()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseValue.
func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := ParseValue(string(text))
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}
