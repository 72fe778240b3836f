// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	courier "github.com/datafield/courier"
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
	courierstore "github.com/datafield/courier/store"
)

// compile-time interface check.
var _ courierstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.Mutex

	hooks      map[string]*hook.Hook    // keyed by ID string
	logs       map[string]*hooklog.Log  // keyed by ID string
	logsByPair map[pairKey]*hooklog.Log // keyed by (hook, submission)

	closed bool
}

type pairKey struct {
	hookID       string
	submissionID int64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		hooks:      make(map[string]*hook.Hook),
		logs:       make(map[string]*hooklog.Log),
		logsByPair: make(map[pairKey]*hooklog.Log),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return courier.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// hook.Store
// ──────────────────────────────────────────────────

// CreateHook persists a new hook.
func (s *Store) CreateHook(_ context.Context, h *hook.Hook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *h
	s.hooks[h.ID.String()] = &c
	return nil
}

// GetHook returns a hook by ID.
func (s *Store) GetHook(_ context.Context, hookID id.ID) (*hook.Hook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hooks[hookID.String()]
	if !ok {
		return nil, courier.ErrHookNotFound
	}
	c := *h
	return &c, nil
}

// UpdateHook modifies an existing hook.
func (s *Store) UpdateHook(_ context.Context, h *hook.Hook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hooks[h.ID.String()]; !ok {
		return courier.ErrHookNotFound
	}
	c := *h
	c.UpdatedAt = time.Now().UTC()
	s.hooks[h.ID.String()] = &c
	return nil
}

// DeleteHook removes a hook and cascades to its delivery logs.
func (s *Store) DeleteHook(_ context.Context, hookID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hookID.String()
	if _, ok := s.hooks[key]; !ok {
		return courier.ErrHookNotFound
	}
	delete(s.hooks, key)

	for logID, l := range s.logs {
		if l.HookID.String() == key {
			delete(s.logs, logID)
			delete(s.logsByPair, pairKey{hookID: key, submissionID: l.SubmissionID})
		}
	}
	return nil
}

// ListHooks returns hooks for a project, optionally filtered.
func (s *Store) ListHooks(_ context.Context, projectID string, opts hook.ListOpts) ([]*hook.Hook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*hook.Hook, 0, len(s.hooks))
	for _, h := range s.hooks {
		if h.ProjectID != projectID {
			continue
		}
		if opts.Active != nil && h.Active != *opts.Active {
			continue
		}
		c := *h
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ListActiveHooks returns the active hooks for a project.
func (s *Store) ListActiveHooks(ctx context.Context, projectID string) ([]*hook.Hook, error) {
	active := true
	return s.ListHooks(ctx, projectID, hook.ListOpts{Active: &active})
}

// SetActive toggles a hook without deleting it.
func (s *Store) SetActive(_ context.Context, hookID id.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hooks[hookID.String()]
	if !ok {
		return courier.ErrHookNotFound
	}
	h.Active = active
	h.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// hooklog.Store
// ──────────────────────────────────────────────────

// CreateLogIfAbsent inserts the log unless the (hook, submission) pair
// already has one.
func (s *Store) CreateLogIfAbsent(_ context.Context, l *hooklog.Log) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{hookID: l.HookID.String(), submissionID: l.SubmissionID}
	if _, ok := s.logsByPair[key]; ok {
		return false, nil
	}

	c := *l
	s.logs[l.ID.String()] = &c
	s.logsByPair[key] = &c
	return true, nil
}

// GetLog returns a log by ID.
func (s *Store) GetLog(_ context.Context, logID id.ID) (*hooklog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[logID.String()]
	if !ok {
		return nil, courier.ErrLogNotFound
	}
	c := *l
	return &c, nil
}

// GetLogForSubmission returns the log for a (hook, submission) pair.
func (s *Store) GetLogForSubmission(_ context.Context, hookID id.ID, submissionID int64) (*hooklog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logsByPair[pairKey{hookID: hookID.String(), submissionID: submissionID}]
	if !ok {
		return nil, courier.ErrLogNotFound
	}
	c := *l
	return &c, nil
}

// ListLogs returns logs for a hook, optionally filtered.
func (s *Store) ListLogs(_ context.Context, hookID id.ID, opts hooklog.ListOpts) ([]*hooklog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*hooklog.Log, 0)
	for _, l := range s.logs {
		if l.HookID != hookID {
			continue
		}
		if opts.State != nil && l.State != *opts.State {
			continue
		}
		if opts.ModifiedAfter != nil && l.UpdatedAt.Before(*opts.ModifiedAfter) {
			continue
		}
		if opts.ModifiedBefore != nil && l.UpdatedAt.After(*opts.ModifiedBefore) {
			continue
		}
		c := *l
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Apply performs a guarded transition under the store lock.
func (s *Store) Apply(_ context.Context, t hooklog.Transition) (*hooklog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[t.LogID.String()]
	if !ok {
		return nil, courier.ErrLogNotFound
	}
	if !t.Allows(l.State) {
		return nil, hooklog.ErrTransitionRejected
	}

	l.State = t.State
	l.StatusCode = t.StatusCode
	l.Message = t.Message
	if t.IncrementTries {
		l.Tries++
	}
	if t.NextAttemptAt != nil {
		l.NextAttemptAt = *t.NextAttemptAt
	}
	l.UpdatedAt = time.Now().UTC()

	c := *l
	return &c, nil
}

// Dequeue claims due pending logs of active hooks.
func (s *Store) Dequeue(_ context.Context, limit int) ([]*hooklog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	due := make([]*hooklog.Log, 0)
	for _, l := range s.logs {
		if l.State != hooklog.StatePending || l.NextAttemptAt.After(now) {
			continue
		}
		h, ok := s.hooks[l.HookID.String()]
		if !ok || !h.Active {
			continue
		}
		due = append(due, l)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	result := make([]*hooklog.Log, len(due))
	for i, l := range due {
		l.State = hooklog.StateProcessing
		l.UpdatedAt = now
		c := *l
		result[i] = &c
	}
	return result, nil
}

// ListStalledPending returns untouched pending logs of active hooks last
// modified before the cutoff.
func (s *Store) ListStalledPending(_ context.Context, before time.Time) ([]*hooklog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*hooklog.Log, 0)
	for _, l := range s.logs {
		if l.State != hooklog.StatePending ||
			l.StatusCode != hooklog.StatusNoResponse ||
			l.Message != "" ||
			!l.UpdatedAt.Before(before) {
			continue
		}
		h, ok := s.hooks[l.HookID.String()]
		if !ok || !h.Active {
			continue
		}
		c := *l
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result, nil
}

// ListZombieProcessing returns processing logs last modified before the
// cutoff.
func (s *Store) ListZombieProcessing(_ context.Context, before time.Time) ([]*hooklog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*hooklog.Log, 0)
	for _, l := range s.logs {
		if l.State != hooklog.StateProcessing || !l.UpdatedAt.Before(before) {
			continue
		}
		c := *l
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result, nil
}

// CountByState returns per-state log totals for a hook.
func (s *Store) CountByState(_ context.Context, hookID id.ID) (map[hooklog.State]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[hooklog.State]int64{
		hooklog.StatePending:    0,
		hooklog.StateProcessing: 0,
		hooklog.StateSuccess:    0,
		hooklog.StateFailed:     0,
	}
	for _, l := range s.logs {
		if l.HookID == hookID {
			counts[l.State]++
		}
	}
	return counts, nil
}

// CountPending returns the number of pending logs across all hooks.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, l := range s.logs {
		if l.State == hooklog.StatePending {
			count++
		}
	}
	return count, nil
}

// paginate applies offset and limit to a slice.
func paginate[T any](items []*T, offset, limit int) []*T {
	if offset >= len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
