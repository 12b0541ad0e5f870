package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverNone   = "none"
)

// Open opens the store of a driver. DriverNone yields a nil store and no error.
func Open(ctx context.Context, driver, path string, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		store, err := OpenSQLite(ctx, path, logger)
		if err != nil {
			return nil, err
		}

		return store, nil
	case DriverNone, "":
		return nil, nil //nolint:nilnil // a disabled history is not an error.
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// ReferenceStatus describes the outcome of a reference build lookup.
type ReferenceStatus int

// Reference statuses.
const (
	ReferenceOK ReferenceStatus = iota
	NoPreviousBuild
	NoReferenceBuild
	NoCoverageDataInReference
	ReferenceIsCurrentBuild
	ReferenceNotSuccessful
)

var referenceMessages = [...]string{
	ReferenceOK:               "reference build found",
	NoPreviousBuild:           "no previous build was found",
	NoReferenceBuild:          "no reference build was found",
	NoCoverageDataInReference: "the reference build has no coverage data",
	ReferenceIsCurrentBuild:   "the reference build is the current build",
	ReferenceNotSuccessful:    "the reference build was neither successful nor unstable",
}

func (s ReferenceStatus) String() string {
	if s < 0 || int(s) >= len(referenceMessages) {
		return fmt.Sprintf("reference(%d)", int(s))
	}

	return referenceMessages[s]
}

// Reference is the result of ResolveReference. Record is set only for ReferenceOK.
type Reference struct {
	Status     ReferenceStatus
	Identifier string
	Record     *Record
}

// OK reports whether a usable reference was found.
func (r Reference) OK() bool { return r.Status == ReferenceOK }

const defaultReferenceIdentifier = "latest successful build"

// ResolveReference finds the reference build of the current build. An empty
// requested identifier selects the newest successful or unstable build before
// the current one that has coverage data; otherwise requested is a build number.
func ResolveReference(ctx context.Context, store Store, current int, requested string) (Reference, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return resolveDefault(ctx, store, current)
	}

	number, err := strconv.Atoi(requested)
	if err != nil || number <= 0 {
		return Reference{Status: NoReferenceBuild, Identifier: requested}, nil
	}

	if number == current {
		return Reference{Status: ReferenceIsCurrentBuild, Identifier: requested}, nil
	}

	rec, err := store.Get(ctx, number)
	if errors.Is(err, ErrNotFound) {
		return Reference{Status: NoReferenceBuild, Identifier: requested}, nil
	}

	if err != nil {
		return Reference{}, err
	}

	return classify(rec, requested), nil
}

func classify(rec Record, identifier string) Reference {
	switch {
	case !rec.Status.IsSuccessful():
		return Reference{Status: ReferenceNotSuccessful, Identifier: identifier}
	case !rec.HasCoverage():
		return Reference{Status: NoCoverageDataInReference, Identifier: identifier}
	default:
		return Reference{Status: ReferenceOK, Identifier: identifier, Record: &rec}
	}
}

func resolveDefault(ctx context.Context, store Store, current int) (Reference, error) {
	records, err := store.List(ctx)
	if err != nil {
		return Reference{}, err
	}

	var previous []Record

	for _, rec := range records {
		if rec.Build.Number < current {
			previous = append(previous, rec)
		}
	}

	if len(previous) == 0 {
		return Reference{Status: NoPreviousBuild, Identifier: defaultReferenceIdentifier}, nil
	}

	foundSuccessful := false

	for i := len(previous) - 1; i >= 0; i-- {
		rec := previous[i]
		if !rec.Status.IsSuccessful() {
			continue
		}

		foundSuccessful = true

		if rec.HasCoverage() {
			return Reference{Status: ReferenceOK, Identifier: strconv.Itoa(rec.Build.Number), Record: &rec}, nil
		}
	}

	if !foundSuccessful {
		return Reference{Status: NoReferenceBuild, Identifier: defaultReferenceIdentifier}, nil
	}

	return Reference{Status: NoCoverageDataInReference, Identifier: defaultReferenceIdentifier}, nil
}
