package report

import (
	"errors"
	"time"

	"github.com/Sumatoshi-tech/covergate/pkg/gate"
	"github.com/Sumatoshi-tech/covergate/pkg/persist"
	"github.com/Sumatoshi-tech/covergate/pkg/recorder"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

// ArtifactName is the basename of the result artifact.
const ArtifactName = "covergate"

// Event is the serialized form of a recorder event.
type Event struct {
	Kind  string `json:"kind"            yaml:"kind"`
	Path  string `json:"path"            yaml:"path"`
	Cause string `json:"cause,omitempty" yaml:"cause,omitempty"`
	Error bool   `json:"error"           yaml:"error"`
}

// Artifact is everything one record run produced.
type Artifact struct {
	Build      trend.Build       `json:"build"               yaml:"build"`
	RecordedAt time.Time         `json:"recorded_at"         yaml:"recorded_at"`
	Reference  string            `json:"reference,omitempty" yaml:"reference,omitempty"`
	Files      []string          `json:"files"               yaml:"files"`
	Statistics *stats.Statistics `json:"statistics"          yaml:"statistics"`
	Gate       *gate.Result      `json:"gate,omitempty"      yaml:"gate,omitempty"`
	Events     []Event           `json:"events,omitempty"    yaml:"events,omitempty"`
}

// Events converts recorder events for serialization.
func Events(events []recorder.Event) []Event {
	out := make([]Event, 0, len(events))

	for _, e := range events {
		entry := Event{Kind: e.Kind.String(), Path: e.Path, Error: e.Kind.IsError()}
		if e.Cause != nil {
			entry.Cause = e.Cause.Error()
		}

		out = append(out, entry)
	}

	return out
}

// SaveArtifact writes the artifact into dir in every requested format and
// returns the written paths.
func SaveArtifact(dir string, artifact *Artifact, formats ...string) ([]string, error) {
	paths := make([]string, 0, len(formats))

	var errs []error

	for _, format := range formats {
		codec, err := persist.CodecFor(format)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		p := persist.NewPersister[Artifact](ArtifactName, codec)

		err = p.Save(dir, artifact)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		paths = append(paths, p.Path(dir))
	}

	return paths, errors.Join(errs...)
}

// LoadArtifact reads the artifact of a format from dir.
func LoadArtifact(dir, format string) (*Artifact, error) {
	codec, err := persist.CodecFor(format)
	if err != nil {
		return nil, err
	}

	return persist.NewPersister[Artifact](ArtifactName, codec).Load(dir)
}
