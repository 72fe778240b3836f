package delivery

import (
	"net/http"
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	b := NewBackoff([]time.Duration{time.Minute, 10 * time.Minute})

	tests := []struct {
		tries int
		want  time.Duration
	}{
		{tries: 1, want: time.Minute},
		{tries: 2, want: 10 * time.Minute},
		// Past the end of the schedule the last interval repeats.
		{tries: 3, want: 10 * time.Minute},
		{tries: 10, want: 10 * time.Minute},
		// Degenerate input clamps to the first interval.
		{tries: 0, want: time.Minute},
	}

	for _, tt := range tests {
		before := time.Now().Add(tt.want - time.Second)
		after := time.Now().Add(tt.want + time.Second)
		got := b.NextAttempt(tt.tries)
		if got.Before(before) || got.After(after) {
			t.Fatalf("tries=%d: next attempt %v not within %v of now", tt.tries, got, tt.want)
		}
	}
}

func TestNewBackoffDefaultsEmptySchedule(t *testing.T) {
	b := NewBackoff(nil)
	got := b.NextAttempt(1)
	want := time.Now().Add(DefaultBackoffSchedule[0])
	if got.Before(want.Add(-time.Second)) || got.After(want.Add(time.Second)) {
		t.Fatalf("next attempt %v, want about %v", got, want)
	}
}

func TestBackoffScheduleIsMonotone(t *testing.T) {
	for i := 1; i < len(DefaultBackoffSchedule); i++ {
		if DefaultBackoffSchedule[i] <= DefaultBackoffSchedule[i-1] {
			t.Fatalf("schedule not increasing at index %d", i)
		}
	}
}

func TestRetriable(t *testing.T) {
	set := DefaultRetriableStatuses

	for _, status := range []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		if !retriable(status, set) {
			t.Fatalf("expected %d to be retriable", status)
		}
	}
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError, 0} {
		if retriable(status, set) {
			t.Fatalf("expected %d not to be retriable", status)
		}
	}
}
