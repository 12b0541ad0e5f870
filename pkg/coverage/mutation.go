package coverage

import "strings"

// MutationStatus is the outcome of a single mutation test.
type MutationStatus int

// Mutation outcomes.
const (
	Killed MutationStatus = iota
	Survived
	NoCoverage
	NonViable
	TimedOut
	MemoryError
	RunError
)

var mutationStatusNames = [...]string{
	Killed:      "KILLED",
	Survived:    "SURVIVED",
	NoCoverage:  "NO_COVERAGE",
	NonViable:   "NON_VIABLE",
	TimedOut:    "TIMED_OUT",
	MemoryError: "MEMORY_ERROR",
	RunError:    "RUN_ERROR",
}

// ParseMutationStatus resolves a status name; unknown names map to RunError.
func ParseMutationStatus(name string) MutationStatus {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for s, n := range mutationStatusNames {
		if n == upper {
			return MutationStatus(s)
		}
	}

	return RunError
}

func (s MutationStatus) String() string {
	if s < 0 || int(s) >= len(mutationStatusNames) {
		return mutationStatusNames[RunError]
	}

	return mutationStatusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s MutationStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MutationStatus) UnmarshalText(text []byte) error {
	*s = ParseMutationStatus(string(text))

	return nil
}

// IsDetected reports whether the tests detected the mutation.
func (s MutationStatus) IsDetected() bool { return s == Killed }

// IsCovered reports whether the mutated line was executed by the tests.
func (s MutationStatus) IsCovered() bool { return s == Killed || s == Survived }

// IsMissed reports whether the mutated code was not executed at all.
func (s MutationStatus) IsMissed() bool { return s == NoCoverage }

// IsValid reports whether the outcome counts for mutation coverage.
func (s MutationStatus) IsValid() bool { return s.IsCovered() || s.IsMissed() }

// Mutant is a single mutation reported by a mutation testing tool.
type Mutant struct {
	Detected     bool           `json:"detected"`
	Status       MutationStatus `json:"status"`
	Line         int            `json:"line"`
	Mutator      string         `json:"mutator"`
	KillingTest  string         `json:"killing_test,omitempty"`
	MutatedClass string         `json:"mutated_class"`
	Method       string         `json:"method"`
	Signature    string         `json:"signature"`
	Description  string         `json:"description"`
}

// IsValid reports whether the mutation counts for mutation coverage.
func (m Mutant) IsValid() bool { return m.Status.IsValid() }

// IsCovered reports whether the mutated line was executed.
func (m Mutant) IsCovered() bool { return m.Status.IsCovered() }

// IsMissed reports whether the mutated line was never executed.
func (m Mutant) IsMissed() bool { return m.Status.IsMissed() }
