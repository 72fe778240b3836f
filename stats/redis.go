package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/datafield/courier/id"
)

// Key prefix for cached hook counters.
const prefixHookCounts = "courier:stats:hook:"

func countsKey(hookID id.ID) string {
	return prefixHookCounts + hookID.String()
}

// compile-time interface check
var _ Cache = (*RedisCache)(nil)

// RedisCache caches counters in Redis so multiple courier instances share
// one counter view. Redis trouble degrades to computing from the source.
type RedisCache struct {
	rdb    goredis.UniversalClient
	source Source
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a Redis-backed counters cache. A zero ttl uses
// DefaultTTL.
func NewRedisCache(rdb goredis.UniversalClient, source Source, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, source: source, ttl: ttl, logger: logger}
}

// Counts returns the per-state totals for a hook, filling the cache on miss.
func (c *RedisCache) Counts(ctx context.Context, hookID id.ID) (Counts, error) {
	key := countsKey(hookID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var counts Counts
		if jsonErr := json.Unmarshal(raw, &counts); jsonErr == nil {
			return counts, nil
		}
		// Unreadable entry, fall through and recompute.
	case !errors.Is(err, goredis.Nil):
		c.logger.DebugContext(ctx, "stats cache read failed, computing from source",
			"hook_id", hookID, "error", err)
	}

	computed, err := c.source.CountByState(ctx, hookID)
	if err != nil {
		return nil, err
	}
	counts := Counts(computed)

	if raw, err := json.Marshal(counts); err == nil {
		if setErr := c.rdb.Set(ctx, key, raw, c.ttl).Err(); setErr != nil {
			c.logger.DebugContext(ctx, "stats cache write failed",
				"hook_id", hookID, "error", setErr)
		}
	}
	return counts, nil
}

// Invalidate drops the cached entry for a hook.
func (c *RedisCache) Invalidate(ctx context.Context, hookID id.ID) {
	if err := c.rdb.Del(ctx, countsKey(hookID)).Err(); err != nil {
		c.logger.DebugContext(ctx, "stats cache invalidation failed",
			"hook_id", hookID, "error", err)
	}
}
