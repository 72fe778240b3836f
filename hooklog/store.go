package hooklog

import (
	"context"
	"errors"
	"time"

	"github.com/datafield/courier/id"
)

// ErrTransitionRejected is returned by Store.Apply when the log's current
// state is not in the transition's From set. The row is left untouched.
var ErrTransitionRejected = errors.New("hooklog: transition rejected by state guard")

// Transition describes one guarded update of a delivery log row.
//
// Every mutation of a log after creation goes through Store.Apply with a
// Transition; ad hoc field updates are forbidden so that try-count
// accounting and terminal-state protection hold everywhere. Implementations
// must apply the whole transition atomically under the row lock, with the
// From set as the guard condition.
type Transition struct {
	// LogID identifies the row to update.
	LogID id.ID

	// From is the set of states the transition may be applied from.
	From []State

	// State is the target state.
	State State

	// StatusCode is the HTTP status to record (StatusNoResponse when none).
	StatusCode int

	// Message is the outcome message to record. Stored sanitized.
	Message string

	// IncrementTries bumps the try counter by one. False only for the
	// pending-to-processing claim marker and for sweep/retry repairs.
	IncrementTries bool

	// NextAttemptAt, when non-nil, sets the log's due time.
	NextAttemptAt *time.Time
}

// Allows reports whether the transition's guard admits the given state.
func (t Transition) Allows(s State) bool {
	for _, from := range t.From {
		if from == s {
			return true
		}
	}
	return false
}

// Store defines the persistence contract for delivery logs.
type Store interface {
	// CreateLogIfAbsent inserts the log unless a row for the same
	// (hook, submission) pair already exists. Returns true when a new row
	// was created. This is the sole dedup mechanism for dispatch.
	CreateLogIfAbsent(ctx context.Context, l *Log) (bool, error)

	// GetLog returns a log by ID.
	GetLog(ctx context.Context, logID id.ID) (*Log, error)

	// GetLogForSubmission returns the log for a (hook, submission) pair.
	GetLogForSubmission(ctx context.Context, hookID id.ID, submissionID int64) (*Log, error)

	// ListLogs returns logs for a hook, optionally filtered by state and
	// modified-date range.
	ListLogs(ctx context.Context, hookID id.ID, opts ListOpts) ([]*Log, error)

	// Apply performs a guarded, row-locked transition and returns the
	// updated log. Returns ErrTransitionRejected when the guard fails.
	Apply(ctx context.Context, t Transition) (*Log, error)

	// Dequeue claims up to limit due pending logs belonging to active
	// hooks, moving them to processing. Implementations must ensure no
	// double-claim (e.g. FOR UPDATE SKIP LOCKED). Logs of inactive hooks
	// are never claimed.
	Dequeue(ctx context.Context, limit int) ([]*Log, error)

	// ListStalledPending returns pending logs of active hooks with the
	// no-response sentinel, an empty message, and a last-modified time
	// before the cutoff. These are rows whose worker died before claiming.
	ListStalledPending(ctx context.Context, before time.Time) ([]*Log, error)

	// ListZombieProcessing returns processing logs last modified before
	// the cutoff, regardless of whether the hook is still active.
	ListZombieProcessing(ctx context.Context, before time.Time) ([]*Log, error)

	// CountByState returns per-state log totals for a hook.
	CountByState(ctx context.Context, hookID id.ID) (map[State]int64, error)

	// CountPending returns the number of pending logs across all hooks.
	CountPending(ctx context.Context) (int64, error)
}
