// Package cache memoizes per-module extraction output for one build session.
package cache

import (
	"context"
	"sync"
)

// Entry is the source a module had when its CSS was computed.
type Entry struct {
	Source string
	CSS    string
}

// ComputeFunc produces CSS for a module's current source, typically by
// compiling Less and running the extractor on the result.
type ComputeFunc func(ctx context.Context, source string) (string, error)

// ModuleCache maps module ids to their last computed Entry. An entry is
// reused only while the module source is byte-for-byte unchanged.
//
// The cache is unbounded: module count is bounded by project size and the
// cache lives for a single build session.
type ModuleCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// New returns an empty ModuleCache.
func New() *ModuleCache {
	return &ModuleCache{entries: make(map[string]Entry)}
}

// GetOrCompute returns the cached CSS for id when its stored source equals
// source. Otherwise it calls compute, stores the result under id, and
// returns it. A compute error is returned as is and leaves any previous
// entry in place.
//
// The lock is not held while compute runs; the host never transforms the
// same id concurrently.
func (c *ModuleCache) GetOrCompute(ctx context.Context, id, source string, compute ComputeFunc) (string, error) {
	if css, ok := c.lookup(id, source); ok {
		return css, nil
	}

	css, err := compute(ctx, source)
	if err != nil {
		return "", err
	}

	c.Put(id, source, css)
	return css, nil
}

// Fresh reports whether id has an entry computed from source.
func (c *ModuleCache) Fresh(id, source string) bool {
	_, ok := c.lookup(id, source)
	return ok
}

// Get returns the entry stored for id, stale or not.
func (c *ModuleCache) Get(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

// Put stores css as computed from source, replacing any entry for id.
func (c *ModuleCache) Put(id, source, css string) {
	c.mu.Lock()
	c.entries[id] = Entry{Source: source, CSS: css}
	c.mu.Unlock()
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ModuleCache) lookup(id, source string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || e.Source != source {
		return "", false
	}
	return e.CSS, true
}
