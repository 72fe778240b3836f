// Package stats caches per-hook delivery counters. Counts are computed
// from the log store on demand and invalidated explicitly on outcome
// writes; intermediate claim bookkeeping may be cached until the TTL
// expires.
package stats

import (
	"context"
	"time"

	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
)

// Counts holds per-state log totals for one hook.
type Counts map[hooklog.State]int64

// Total returns the sum across all states.
func (c Counts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// Source computes counters from the system of record.
type Source interface {
	CountByState(ctx context.Context, hookID id.ID) (map[hooklog.State]int64, error)
}

// Cache serves per-hook counters, answering from a cache when it can.
type Cache interface {
	// Counts returns the per-state totals for a hook.
	Counts(ctx context.Context, hookID id.ID) (Counts, error)

	// Invalidate drops the cached entry for a hook. Called after outcome
	// writes for that hook.
	Invalidate(ctx context.Context, hookID id.ID)
}

// DefaultTTL bounds staleness if an invalidation is lost.
const DefaultTTL = 5 * time.Minute
