package hooklog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/datafield/courier/id"
)

// ErrNotRetriable is returned when a manual retry is requested for a log
// that is not eligible.
var ErrNotRetriable = errors.New("hooklog: log is not eligible for retry")

// RetryPolicy bounds manual-retry eligibility for non-terminal logs.
type RetryPolicy struct {
	// MaxRetries is the configured automatic-retry ceiling. A pending log
	// whose tries exceed MaxRetries+1 will never be retried automatically,
	// so it becomes eligible for manual retry.
	MaxRetries int

	// PendingAge is how long a pending log must have been untouched before
	// manual retry is allowed.
	PendingAge time.Duration
}

// Service provides read and manual-retry operations over delivery logs.
type Service struct {
	store  Store
	policy RetryPolicy
	logger *slog.Logger
}

// NewService creates a new log service.
func NewService(store Store, policy RetryPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

// Get returns a log by ID.
func (svc *Service) Get(ctx context.Context, logID id.ID) (*Log, error) {
	return svc.store.GetLog(ctx, logID)
}

// List returns logs for a hook.
func (svc *Service) List(ctx context.Context, hookID id.ID, opts ListOpts) ([]*Log, error) {
	return svc.store.ListLogs(ctx, hookID, opts)
}

// Counts returns per-state log totals for a hook.
func (svc *Service) Counts(ctx context.Context, hookID id.ID) (map[State]int64, error) {
	return svc.store.CountByState(ctx, hookID)
}

// Eligible reports whether the log may be manually retried: any failed log,
// or a pending log that exhausted its automatic retries (no response ever
// recorded, tries over the cap) and has sat untouched past the age
// threshold. Successful and in-flight logs are never eligible.
func (svc *Service) Eligible(l *Log) bool {
	switch l.State {
	case StateFailed:
		return true
	case StatePending:
		return l.StatusCode == StatusNoResponse &&
			l.Tries > svc.policy.MaxRetries+1 &&
			time.Since(l.UpdatedAt) >= svc.policy.PendingAge
	default:
		return false
	}
}

// Retry re-queues a single eligible log and returns it in its new pending
// state. Returns ErrNotRetriable when the log is not eligible.
func (svc *Service) Retry(ctx context.Context, logID id.ID) (*Log, error) {
	l, err := svc.store.GetLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	if !svc.Eligible(l) {
		return nil, ErrNotRetriable
	}
	return svc.requeue(ctx, l)
}

// RetryAll re-queues every eligible log of a hook and returns the IDs that
// were marked pending.
func (svc *Service) RetryAll(ctx context.Context, hookID id.ID) ([]id.ID, error) {
	logs, err := svc.store.ListLogs(ctx, hookID, ListOpts{})
	if err != nil {
		return nil, err
	}

	var queued []id.ID
	for _, l := range logs {
		if !svc.Eligible(l) {
			continue
		}
		if _, err := svc.requeue(ctx, l); err != nil {
			// Lost the race with a concurrent writer; skip the row.
			if errors.Is(err, ErrTransitionRejected) {
				continue
			}
			return queued, err
		}
		queued = append(queued, l.ID)
	}
	return queued, nil
}

func (svc *Service) requeue(ctx context.Context, l *Log) (*Log, error) {
	now := time.Now().UTC()
	updated, err := svc.store.Apply(ctx, Transition{
		LogID:          l.ID,
		From:           []State{StateFailed, StatePending},
		State:          StatePending,
		StatusCode:     StatusNoResponse,
		Message:        "",
		IncrementTries: false,
		NextAttemptAt:  &now,
	})
	if err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "log re-queued for delivery",
		"log_id", l.ID, "hook_id", l.HookID, "submission_id", l.SubmissionID,
		"previous_state", l.State, "tries", l.Tries)

	return updated, nil
}
