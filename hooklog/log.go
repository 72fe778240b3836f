package hooklog

import (
	"time"

	"github.com/datafield/courier/id"
	"github.com/datafield/courier/internal/entity"
)

// State represents the current state of a delivery log.
type State string

const (
	// StatePending indicates the log is awaiting delivery, or eligible for
	// retry after a transient failure.
	StatePending State = "pending"

	// StateProcessing indicates a worker has claimed the log and is about
	// to call out. Logs stuck here past a timeout are finalized by the
	// zombie sweep.
	StateProcessing State = "processing"

	// StateSuccess indicates the delivery was accepted (2xx). Terminal.
	StateSuccess State = "success"

	// StateFailed indicates the delivery permanently failed. Terminal,
	// except for manual retry.
	StateFailed State = "failed"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateSuccess, StateFailed:
		return true
	}
	return false
}

// StatusNoResponse is the status code sentinel recorded before any HTTP
// response has been observed for a log.
const StatusNoResponse = 0

// Log is the durable record of the delivery relationship between one hook
// and one submission.
type Log struct {
	entity.Entity

	// ID is the unique TypeID for this log.
	ID id.ID `json:"id"`

	// HookID references the owning hook.
	HookID id.ID `json:"hook_id"`

	// SubmissionID is the opaque identifier of the submission in the
	// external submission store.
	SubmissionID int64 `json:"submission_id"`

	// Tries is the number of recorded delivery attempts.
	Tries int `json:"tries"`

	// State is the current delivery state.
	State State `json:"state"`

	// StatusCode is the last observed HTTP status, or StatusNoResponse.
	StatusCode int `json:"status_code"`

	// Message is the last recorded human-readable outcome. Sanitized and
	// truncated before storage.
	Message string `json:"message"`

	// NextAttemptAt is when the log becomes due for delivery. Only
	// meaningful while State is pending.
	NextAttemptAt time.Time `json:"next_attempt_at"`
}

// New creates a pending log for a (hook, submission) pair, due immediately.
func New(hookID id.ID, submissionID int64) *Log {
	return &Log{
		Entity:        entity.New(),
		ID:            id.NewLogID(),
		HookID:        hookID,
		SubmissionID:  submissionID,
		State:         StatePending,
		StatusCode:    StatusNoResponse,
		NextAttemptAt: time.Now().UTC(),
	}
}

// ListOpts configures filtering and pagination for log listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State

	// ModifiedAfter / ModifiedBefore bound the last-modified timestamp.
	ModifiedAfter  *time.Time
	ModifiedBefore *time.Time
}
