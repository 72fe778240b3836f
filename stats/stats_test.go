package stats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
	"github.com/datafield/courier/stats"
)

type fakeSource struct {
	counts map[hooklog.State]int64
	err    error
	calls  int
}

func (f *fakeSource) CountByState(_ context.Context, _ id.ID) (map[hooklog.State]int64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

func TestCountsTotal(t *testing.T) {
	c := stats.Counts{
		hooklog.StatePending: 2,
		hooklog.StateSuccess: 5,
		hooklog.StateFailed:  1,
	}
	if got := c.Total(); got != 8 {
		t.Fatalf("Total() = %d, want 8", got)
	}
	if got := stats.Counts(nil).Total(); got != 0 {
		t.Fatalf("Total() on nil = %d, want 0", got)
	}
}

func TestMemoryCacheServesFromCache(t *testing.T) {
	src := &fakeSource{counts: map[hooklog.State]int64{hooklog.StateSuccess: 3}}
	cache := stats.NewMemoryCache(src, time.Minute)
	hookID := id.NewHookID()
	ctx := context.Background()

	first, err := cache.Counts(ctx, hookID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Counts(ctx, hookID)
	if err != nil {
		t.Fatal(err)
	}

	if src.calls != 1 {
		t.Fatalf("source called %d times, want 1", src.calls)
	}
	if first[hooklog.StateSuccess] != 3 || second[hooklog.StateSuccess] != 3 {
		t.Fatalf("counts = %v / %v, want success=3", first, second)
	}
}

func TestMemoryCacheInvalidateForcesRecompute(t *testing.T) {
	src := &fakeSource{counts: map[hooklog.State]int64{hooklog.StatePending: 1}}
	cache := stats.NewMemoryCache(src, time.Minute)
	hookID := id.NewHookID()
	ctx := context.Background()

	if _, err := cache.Counts(ctx, hookID); err != nil {
		t.Fatal(err)
	}

	src.counts = map[hooklog.State]int64{hooklog.StateSuccess: 1}
	cache.Invalidate(ctx, hookID)

	got, err := cache.Counts(ctx, hookID)
	if err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Fatalf("source called %d times, want 2", src.calls)
	}
	if got[hooklog.StateSuccess] != 1 {
		t.Fatalf("counts = %v, want success=1 after invalidation", got)
	}
}

func TestMemoryCacheKeysPerHook(t *testing.T) {
	src := &fakeSource{counts: map[hooklog.State]int64{hooklog.StatePending: 1}}
	cache := stats.NewMemoryCache(src, time.Minute)
	ctx := context.Background()

	if _, err := cache.Counts(ctx, id.NewHookID()); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Counts(ctx, id.NewHookID()); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Fatalf("source called %d times, want one per hook", src.calls)
	}
}

func TestMemoryCachePropagatesSourceError(t *testing.T) {
	wantErr := errors.New("store unavailable")
	src := &fakeSource{err: wantErr}
	cache := stats.NewMemoryCache(src, time.Minute)

	if _, err := cache.Counts(context.Background(), id.NewHookID()); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
