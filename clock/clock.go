// Package clock abstracts wall-clock time so schedule-driven components can
// be tested deterministically.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time { return time.Now().UTC() }

// Mock is a settable clock for tests.
type Mock struct {
	Time time.Time
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time { return m.Time }

// Advance moves the mock clock forward.
func (m *Mock) Advance(d time.Duration) { m.Time = m.Time.Add(d) }
