package stats

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

// Statistics is an immutable snapshot of the values of one build per baseline and metric.
// A snapshot is safe for concurrent reads.
type Statistics struct {
	values map[Baseline][]coverage.Value
}

// New creates a snapshot from the given values. The input is copied; values of each
// baseline are ordered by metric and a repeated metric keeps its first value.
func New(values map[Baseline][]coverage.Value) *Statistics {
	s := &Statistics{values: make(map[Baseline][]coverage.Value, len(values))}

	for baseline, list := range values {
		if len(list) == 0 {
			continue
		}

		s.values[baseline] = normalizeValues(list)
	}

	return s
}

func normalizeValues(list []coverage.Value) []coverage.Value {
	out := make([]coverage.Value, 0, len(list))

	for _, v := range list {
		if !slices.ContainsFunc(out, func(existing coverage.Value) bool { return existing.Metric() == v.Metric() }) {
			out = append(out, v)
		}
	}

	slices.SortStableFunc(out, func(a, b coverage.Value) int { return int(a.Metric()) - int(b.Metric()) })

	return out
}

// Compute derives the statistics of every baseline from a coverage tree. The tree is not modified.
func Compute(root *coverage.Node) *Statistics {
	project := root.AggregateValues()
	modifiedLines := filteredValues(root.FilterByModifiedLines())

	return New(map[Baseline][]coverage.Value{
		Project:            project,
		ModifiedLines:      modifiedLines,
		ModifiedFiles:      filteredValues(root.FilterByModifiedFiles()),
		ModifiedLinesDelta: deltaValues(modifiedLines, project),
		Indirect:           filteredValues(root.FilterByIndirectChanges()),
	})
}

// filteredValues returns nothing for a filtered tree without files, so that
// element counters of the empty root do not show up as measurements.
func filteredValues(filtered *coverage.Node) []coverage.Value {
	if len(filtered.AllFiles()) == 0 {
		return nil
	}

	return filtered.AggregateValues()
}

func deltaValues(current, reference []coverage.Value) []coverage.Value {
	var deltas []coverage.Value

	for _, v := range current {
		if !v.Metric().IsCoverage() {
			continue
		}

		idx := slices.IndexFunc(reference, func(r coverage.Value) bool { return r.Metric() == v.Metric() })
		if idx < 0 {
			continue
		}

		delta, err := v.Delta(reference[idx])
		if err != nil {
			continue
		}

		deltas = append(deltas, coverage.NewFractionRat(v.Metric(), delta))
	}

	return deltas
}

// Value returns the value of a metric in a baseline.
func (s *Statistics) Value(baseline Baseline, metric coverage.Metric) (coverage.Value, bool) {
	for _, v := range s.values[baseline] {
		if v.Metric() == metric {
			return v, true
		}
	}

	return coverage.Value{}, false
}

// Contains reports whether a metric has a value in a baseline.
func (s *Statistics) Contains(baseline Baseline, metric coverage.Metric) bool {
	_, ok := s.Value(baseline, metric)

	return ok
}

// Values returns the values of a baseline ordered by metric.
func (s *Statistics) Values(baseline Baseline) []coverage.Value {
	return slices.Clone(s.values[baseline])
}

// Baselines returns the baselines that carry at least one value.
func (s *Statistics) Baselines() []Baseline {
	var present []Baseline

	for _, b := range Baselines() {
		if len(s.values[b]) > 0 {
			present = append(present, b)
		}
	}

	return present
}

// IsEmpty reports whether the snapshot has no values at all.
func (s *Statistics) IsEmpty() bool { return len(s.values) == 0 }

// Equal reports whether both snapshots carry the same values.
func (s *Statistics) Equal(other *Statistics) bool {
	if len(s.values) != len(other.values) {
		return false
	}

	for baseline, list := range s.values {
		if !slices.EqualFunc(list, other.values[baseline], coverage.Value.Equal) {
			return false
		}
	}

	return true
}

// Serialized returns the snapshot as baseline tag to serialized values.
func (s *Statistics) Serialized() map[string][]string {
	out := make(map[string][]string, len(s.values))

	for baseline, list := range s.values {
		serialized := make([]string, 0, len(list))
		for _, v := range list {
			serialized = append(serialized, v.Serialize())
		}

		out[baseline.Tag()] = serialized
	}

	return out
}

// FromSerialized is the inverse of Serialized.
func FromSerialized(raw map[string][]string) (*Statistics, error) {
	values := make(map[Baseline][]coverage.Value, len(raw))

	for tag, list := range raw {
		baseline, err := ParseBaseline(tag)
		if err != nil {
			return nil, err
		}

		for _, text := range list {
			v, err := coverage.ParseValue(text)
			if err != nil {
				return nil, fmt.Errorf("baseline %s: %w", tag, err)
			}

			values[baseline] = append(values[baseline], v)
		}
	}

	return New(values), nil
}

// MarshalJSON encodes the snapshot as {"project": ["LINE: 28/36", ...], ...}.
func (s *Statistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Serialized())
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (s *Statistics) UnmarshalJSON(data []byte) error {
	var raw map[string][]string

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decode statistics: %w", err)
	}

	decoded, err := FromSerialized(raw)
	if err != nil {
		return err
	}

	s.values = decoded.values

	return nil
}

// MarshalYAML implements yaml.Marshaler with the same layout as MarshalJSON.
func (s *Statistics) MarshalYAML() (any, error) {
	return s.Serialized(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for the layout of MarshalYAML.
func (s *Statistics) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string][]string

	err := unmarshal(&raw)
	if err != nil {
		return fmt.Errorf("decode statistics: %w", err)
	}

	decoded, err := FromSerialized(raw)
	if err != nil {
		return err
	}

	s.values = decoded.values

	return nil
}
