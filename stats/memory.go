package stats

import (
	"context"
	"sync"
	"time"

	"github.com/datafield/courier/id"
)

// compile-time interface check
var _ Cache = (*MemoryCache)(nil)

type memoryEntry struct {
	counts  Counts
	expires time.Time
}

// MemoryCache is an in-process counters cache for single-instance
// deployments and tests.
type MemoryCache struct {
	source Source
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates an in-process counters cache. A zero ttl uses
// DefaultTTL.
func NewMemoryCache(source Source, ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

// Counts returns the per-state totals for a hook, filling the cache on miss.
func (c *MemoryCache) Counts(ctx context.Context, hookID id.ID) (Counts, error) {
	key := hookID.String()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.counts, nil
	}

	computed, err := c.source.CountByState(ctx, hookID)
	if err != nil {
		return nil, err
	}
	counts := Counts(computed)

	c.mu.Lock()
	c.entries[key] = memoryEntry{counts: counts, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return counts, nil
}

// Invalidate drops the cached entry for a hook.
func (c *MemoryCache) Invalidate(_ context.Context, hookID id.ID) {
	c.mu.Lock()
	delete(c.entries, hookID.String())
	c.mu.Unlock()
}
