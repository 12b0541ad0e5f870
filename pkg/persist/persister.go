package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Persister saves and loads artifacts of one type as <dir>/<basename><ext>.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister for basename with codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{basename: basename, codec: codec}
}

// Path returns the artifact path inside dir.
func (p *Persister[T]) Path(dir string) string {
	return filepath.Join(dir, p.basename+p.codec.Extension())
}

// Save writes state to dir. The file is written to a temporary name first and
// renamed, so readers never observe a partial artifact.
func (p *Persister[T]) Save(dir string, state *T) error {
	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, p.basename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}

	err = p.codec.Encode(tmp, state)
	if err != nil {
		return errors.Join(fmt.Errorf("encode %s: %w", p.basename, err), tmp.Close(), os.Remove(tmp.Name()))
	}

	err = tmp.Close()
	if err != nil {
		return errors.Join(fmt.Errorf("close artifact: %w", err), os.Remove(tmp.Name()))
	}

	err = os.Rename(tmp.Name(), p.Path(dir))
	if err != nil {
		return errors.Join(fmt.Errorf("rename artifact: %w", err), os.Remove(tmp.Name()))
	}

	return nil
}

// Load reads the artifact from dir.
func (p *Persister[T]) Load(dir string) (*T, error) {
	f, err := os.Open(p.Path(dir))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	var state T

	err = p.codec.Decode(f, &state)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.basename, err)
	}

	return &state, nil
}
