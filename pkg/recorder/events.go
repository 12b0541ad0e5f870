package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// EventKind classifies a recorder event.
type EventKind int

// Event kinds. EmptyFile, NoFilesMatched and NoDataFound are warnings; the
// others are errors of a single file.
const (
	EmptyFile EventKind = iota
	NoFilesMatched
	NoDataFound
	MalformedReport
	ConversionFailed
)

var eventKindNames = [...]string{
	EmptyFile:        "empty file",
	NoFilesMatched:   "no files matched",
	NoDataFound:      "no data found",
	MalformedReport:  "malformed report",
	ConversionFailed: "conversion failed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("event(%d)", int(k))
	}

	return eventKindNames[k]
}

// IsError reports whether the event marks a failed file.
func (k EventKind) IsError() bool { return k == MalformedReport || k == ConversionFailed }

// Event is one notable outcome of recording. Path is the report path or, for
// NoFilesMatched, the pattern.
type Event struct {
	Kind  EventKind
	Path  string
	Cause error
}

func (e Event) String() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Path)
}

// EventLog collects events and mirrors them to a logger. It is safe for
// concurrent use.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger
}

// NewEventLog creates an empty log. A nil logger uses slog.Default().
func NewEventLog(logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}

	return &EventLog{logger: logger}
}

// Add appends an event.
func (l *EventLog) Add(ctx context.Context, e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()

	attrs := []any{"event", e.Kind.String(), "path", e.Path}
	if e.Cause != nil {
		attrs = append(attrs, "error", e.Cause)
	}

	if e.Kind.IsError() {
		l.logger.ErrorContext(ctx, "report failed", attrs...)

		return
	}

	l.logger.WarnContext(ctx, "report skipped", attrs...)
}

// Events returns the collected events in insertion order.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.events)
}

// Errors returns the error events.
func (l *EventLog) Errors() []Event {
	return l.filter(EventKind.IsError)
}

// Warnings returns the warning events.
func (l *EventLog) Warnings() []Event {
	return l.filter(func(k EventKind) bool { return !k.IsError() })
}

func (l *EventLog) filter(keep func(EventKind) bool) []Event {
	var out []Event

	for _, e := range l.Events() {
		if keep(e.Kind) {
			out = append(out, e)
		}
	}

	return out
}
