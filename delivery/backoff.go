package delivery

import (
	"net/http"
	"time"
)

// Backoff is the retry schedule between delivery attempts. The intervals
// are strictly increasing; attempts past the end of the schedule reuse the
// final interval. One schedule is used at every call site.
type Backoff struct {
	schedule []time.Duration
}

// DefaultBackoffSchedule is the default exponential backoff.
var DefaultBackoffSchedule = []time.Duration{
	1 * time.Minute,
	10 * time.Minute,
	100 * time.Minute,
	1000 * time.Minute,
}

// NewBackoff creates a backoff from the given schedule. An empty schedule
// falls back to DefaultBackoffSchedule.
func NewBackoff(schedule []time.Duration) Backoff {
	if len(schedule) == 0 {
		schedule = DefaultBackoffSchedule
	}
	return Backoff{schedule: schedule}
}

// NextAttempt returns when the next attempt should run, given the number of
// tries recorded so far.
func (b Backoff) NextAttempt(tries int) time.Time {
	idx := tries - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.schedule) {
		idx = len(b.schedule) - 1
	}
	return time.Now().UTC().Add(b.schedule[idx])
}

// DefaultRetriableStatuses are the HTTP statuses treated as transient
// remote failures.
var DefaultRetriableStatuses = []int{
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// retriable reports whether an HTTP status is in the configured transient set.
func retriable(status int, set []int) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
