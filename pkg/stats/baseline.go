// Package stats computes immutable coverage statistics per baseline and formats them.
package stats

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBaseline is returned when a baseline tag cannot be parsed.
var ErrUnknownBaseline = errors.New("unknown baseline")

// Baseline selects the part of a coverage tree a value is computed on.
type Baseline int

// Baselines.
const (
	// Project is the coverage of the whole tree.
	Project Baseline = iota
	// ModifiedLines is the coverage of modified lines only.
	ModifiedLines
	// ModifiedFiles is the coverage of all lines of modified files.
	ModifiedFiles
	// ModifiedLinesDelta is the difference between modified lines and project coverage.
	ModifiedLinesDelta
	// Indirect is the coverage change of unmodified lines.
	Indirect
)

type baselineInfo struct {
	tag    string
	title  string
	anchor string
}

var baselineInfos = [...]baselineInfo{
	Project:            {"project", "Overall project", "fileCoverage"},
	ModifiedLines:      {"modified_lines", "Modified code lines", "modifiedLinesCoverage"},
	ModifiedFiles:      {"modified_files", "Modified files", "modifiedFilesCoverage"},
	ModifiedLinesDelta: {"modified_lines_delta", "Modified code lines vs. overall", "modifiedLinesCoverageDelta"},
	Indirect:           {"indirect", "Indirect changes", "indirectCoverage"},
}

// Baselines returns all baselines in declaration order.
func Baselines() []Baseline {
	all := make([]Baseline, 0, len(baselineInfos))
	for b := range baselineInfos {
		all = append(all, Baseline(b))
	}

	return all
}

// ParseBaseline parses a baseline tag such as "modified_lines". Dashes are accepted for underscores.
func ParseBaseline(tag string) (Baseline, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), "-", "_")

	for b, info := range baselineInfos {
		if info.tag == normalized {
			return Baseline(b), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownBaseline, tag)
}

func (b Baseline) valid() bool { return b >= 0 && int(b) < len(baselineInfos) }

// Tag returns the configuration identifier of the baseline.
func (b Baseline) Tag() string {
	if !b.valid() {
		return fmt.Sprintf("baseline(%d)", int(b))
	}

	return baselineInfos[b].tag
}

// Title returns the human readable name of the baseline.
func (b Baseline) Title() string {
	if !b.valid() {
		return b.Tag()
	}

	return baselineInfos[b].title
}

// Anchor returns the fragment link of the baseline's detail view, e.g. "#fileCoverage".
func (b Baseline) Anchor() string {
	if !b.valid() {
		return ""
	}

	return "#" + baselineInfos[b].anchor
}

// IsDelta reports whether the baseline holds differences instead of absolute values.
func (b Baseline) IsDelta() bool { return b == ModifiedLinesDelta }

func (b Baseline) String() string { return b.Tag() }

// MarshalText implements encoding.TextMarshaler.
func (b Baseline) MarshalText() ([]byte, error) {
	if !b.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBaseline, int(b))
	}

	return []byte(b.Tag()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Baseline) UnmarshalText(text []byte) error {
	parsed, err := ParseBaseline(string(text))
	if err != nil {
		return err
	}

	*b = parsed

	return nil
}
