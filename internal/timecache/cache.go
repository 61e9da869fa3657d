// Package timecache memoizes timestamp parsing and formatting. Both are hit
// on every dashboard refresh tick for every visible position, so results are
// cached keyed by the exact (input, layout) pair. The caches are bounded:
// fixed-capacity LRU with least-recently-used eviction, so a long-running
// process cannot grow them without limit.
package timecache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds each cache. One entry per distinct timestamp string
// (plus layout, for formatting); 4096 covers far more chart points and
// transfer rows than a dashboard session produces.
const DefaultCapacity = 4096

type formatKey struct {
	input  string
	layout string
}

// Cache is a bounded memoization layer over RFC 3339 timestamp parsing and
// layout-based formatting. Safe for concurrent use.
type Cache struct {
	parsed    *lru.Cache[string, time.Time]
	formatted *lru.Cache[formatKey, string]
}

// New creates a Cache holding at most capacity entries per operation.
// capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	parsed, err := lru.New[string, time.Time](capacity)
	if err != nil {
		return nil, fmt.Errorf("timecache: parse cache: %w", err)
	}
	formatted, err := lru.New[formatKey, string](capacity)
	if err != nil {
		return nil, fmt.Errorf("timecache: format cache: %w", err)
	}
	return &Cache{parsed: parsed, formatted: formatted}, nil
}

// Parse returns the time for an RFC 3339 timestamp string, memoized on the
// exact input.
func (c *Cache) Parse(iso string) (time.Time, error) {
	if t, ok := c.parsed.Get(iso); ok {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("timecache: parse %q: %w", iso, err)
	}
	c.parsed.Add(iso, t)
	return t, nil
}

// Format parses an RFC 3339 timestamp and renders it with the given layout,
// memoized on the (input, layout) pair.
func (c *Cache) Format(iso, layout string) (string, error) {
	key := formatKey{input: iso, layout: layout}
	if s, ok := c.formatted.Get(key); ok {
		return s, nil
	}
	t, err := c.Parse(iso)
	if err != nil {
		return "", err
	}
	s := t.Format(layout)
	c.formatted.Add(key, s)
	return s, nil
}

// Len returns the current entry counts, for introspection in tests and the
// health endpoint.
func (c *Cache) Len() (parsed, formatted int) {
	return c.parsed.Len(), c.formatted.Len()
}
