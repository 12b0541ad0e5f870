// Package history stores the statistics of past builds and resolves reference builds.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/covergate/pkg/stats"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

// Store errors.
var (
	ErrNotFound      = errors.New("build not found")
	ErrUnknownStatus = errors.New("unknown build status")
	ErrUnknownDriver = errors.New("unknown history driver")
	ErrCorrupt       = errors.New("corrupt build snapshot")
)

// BuildStatus is the outcome of a recorded build.
type BuildStatus int

// Build statuses, from best to worst.
const (
	Success BuildStatus = iota
	Unstable
	Failure
)

var buildStatusNames = [...]string{Success: "success", Unstable: "unstable", Failure: "failure"}

// ParseBuildStatus parses a status name.
func ParseBuildStatus(name string) (BuildStatus, error) {
	for s, n := range buildStatusNames {
		if strings.EqualFold(name, n) {
			return BuildStatus(s), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}

func (s BuildStatus) String() string {
	if s < 0 || int(s) >= len(buildStatusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}

	return buildStatusNames[s]
}

// IsSuccessful reports whether the build can serve as a reference: successful or unstable.
func (s BuildStatus) IsSuccessful() bool { return s == Success || s == Unstable }

// MarshalText implements encoding.TextMarshaler.
func (s BuildStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *BuildStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseBuildStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// Record is the stored result of one build.
type Record struct {
	Build      trend.Build       `json:"build"`
	Status     BuildStatus       `json:"status"`
	RecordedAt time.Time         `json:"recorded_at"`
	Statistics *stats.Statistics `json:"statistics,omitempty"`
}

// HasCoverage reports whether the build produced coverage statistics.
func (r Record) HasCoverage() bool {
	return r.Statistics != nil && !r.Statistics.IsEmpty()
}

// Store persists build records. Implementations are safe for concurrent use.
type Store interface {
	// Save inserts or replaces the record of a build number.
	Save(ctx context.Context, rec Record) error
	// Get returns the record of a build number or ErrNotFound.
	Get(ctx context.Context, number int) (Record, error)
	// List returns all records ordered by build number, oldest first.
	List(ctx context.Context) ([]Record, error)
	// Prune keeps only the newest records and returns how many were removed.
	Prune(ctx context.Context, keep int) (int, error)
	// Close releases the store.
	Close() error
}

// Results converts records into trend input, skipping builds without coverage.
func Results(records []Record) []trend.BuildResult {
	results := make([]trend.BuildResult, 0, len(records))

	for _, rec := range records {
		if !rec.HasCoverage() {
			continue
		}

		results = append(results, trend.BuildResult{
			Build:      rec.Build,
			RecordedAt: rec.RecordedAt,
			Statistics: rec.Statistics,
		})
	}

	return results
}

// Latest returns the newest record of the store, or ErrNotFound when it is empty.
func Latest(ctx context.Context, store Store) (Record, error) {
	records, err := store.List(ctx)
	if err != nil {
		return Record{}, err
	}

	if len(records) == 0 {
		return Record{}, ErrNotFound
	}

	return records[len(records)-1], nil
}

// NextBuildNumber returns one more than the newest build number, starting at 1.
func NextBuildNumber(ctx context.Context, store Store) (int, error) {
	latest, err := Latest(ctx, store)
	if errors.Is(err, ErrNotFound) {
		return 1, nil
	}

	if err != nil {
		return 0, err
	}

	return latest.Build.Number + 1, nil
}
