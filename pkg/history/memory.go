package history

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore keeps records in memory. Records are copied through the codec so
// that callers never share snapshots with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[int][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[int][]byte)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	blob, err := EncodeRecord(rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[rec.Build.Number] = blob

	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, number int) (Record, error) {
	m.mu.RLock()
	blob, ok := m.blobs[number]
	m.mu.RUnlock()

	if !ok {
		return Record{}, fmt.Errorf("%w: #%d", ErrNotFound, number)
	}

	return DecodeRecord(blob)
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	numbers := m.sortedNumbers()
	records := make([]Record, 0, len(numbers))

	for _, n := range numbers {
		rec, err := DecodeRecord(m.blobs[n])
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(_ context.Context, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	numbers := m.sortedNumbers()
	if keep < 0 || len(numbers) <= keep {
		return 0, nil
	}

	removed := numbers[:len(numbers)-keep]
	for _, n := range removed {
		delete(m.blobs, n)
	}

	return len(removed), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) sortedNumbers() []int {
	numbers := make([]int, 0, len(m.blobs))
	for n := range m.blobs {
		numbers = append(numbers, n)
	}

	slices.Sort(numbers)

	return numbers
}
