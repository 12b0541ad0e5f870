package source

import (
	"container/list"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

const (
	maxLineLength = 1 << 20

	// DefaultCacheBytes bounds the source bytes kept by a Cache.
	DefaultCacheBytes = 32 << 20
)

// Sentinel errors.
var (
	ErrNotAFile       = errors.New("node is not a file")
	ErrSourceNotFound = errors.New("source file not found")
)

type cacheEntry struct {
	path string
	data []byte
}

// Cache keeps recently read source files of one build, evicting the least
// recently used files beyond a byte budget. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List
	maxBytes int64
	curBytes int64

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache holding at most maxBytes of sources.
// A non-positive budget uses DefaultCacheBytes.
func NewCache(maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}

	return &Cache{entries: make(map[string]*list.Element), order: list.New(), maxBytes: maxBytes}
}

// Read returns the content of path, reading it from disk on a miss.
func (c *Cache) Read(path string) ([]byte, error) {
	c.mu.Lock()
	if el, ok := c.entries[path]; ok {
		c.order.MoveToFront(el)
		data := el.Value.(*cacheEntry).data //nolint:forcetypeassert // the list only holds entries.
		c.mu.Unlock()
		c.hits.Add(1)

		return data, nil
	}
	c.mu.Unlock()

	c.misses.Add(1)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	c.put(path, data)

	return data, nil
}

func (c *Cache) put(path string, data []byte) {
	size := int64(len(data))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; ok {
		return
	}

	c.entries[path] = c.order.PushFront(&cacheEntry{path: path, data: data})
	c.curBytes += size

	for c.curBytes > c.maxBytes {
		oldest := c.order.Back()
		entry := oldest.Value.(*cacheEntry) //nolint:forcetypeassert // the list only holds entries.
		c.order.Remove(oldest)
		delete(c.entries, entry.path)
		c.curBytes -= int64(len(entry.data))
	}
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Resolve finds the source of file in dirs followed by the source folders of
// the modules above it. Relative file paths are joined to each directory.
func Resolve(file *coverage.Node, dirs ...string) (string, error) {
	candidates := slices.Clone(dirs)

	for n := file.Parent(); n != nil; n = n.Parent() {
		candidates = append(candidates, n.Sources()...)
	}

	rel := filepath.FromSlash(file.RelativePath())
	if filepath.IsAbs(rel) {
		if _, err := os.Stat(rel); err == nil {
			return rel, nil
		}
	}

	for _, dir := range candidates {
		path := filepath.Join(dir, rel)

		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrSourceNotFound, file.RelativePath())
}
