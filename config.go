package courier

import (
	"time"

	"github.com/datafield/courier/delivery"
	"github.com/datafield/courier/stats"
)

// Config holds the configuration for a Courier instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// PollInterval is how often the delivery engine checks for due logs.
	PollInterval time.Duration

	// BatchSize is the maximum number of logs claimed per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// MaxRetries is the automatic-retry ceiling. A log is attempted at most
	// MaxRetries+1 times before the retry machinery gives up on it.
	MaxRetries int

	// RetrySchedule defines the backoff intervals between retry attempts.
	RetrySchedule []time.Duration

	// RetriableStatuses lists the HTTP statuses treated as transient.
	RetriableStatuses []int

	// UserAgent is sent on every outbound delivery request.
	UserAgent string

	// AllowInsecureEndpoints permits plain-HTTP hook endpoints.
	AllowInsecureEndpoints bool

	// StalledPendingAge is how long an untouched fresh pending log may sit
	// before the recovery sweep re-queues it.
	StalledPendingAge time.Duration

	// ZombieTimeout is how long a processing log may sit before the
	// recovery sweep presumes its worker dead and force-fails it.
	ZombieTimeout time.Duration

	// SweepInterval is how often the recovery sweeps run.
	SweepInterval time.Duration

	// PendingRetryAge is how long a stuck pending log must have been
	// untouched before manual retry is allowed.
	PendingRetryAge time.Duration

	// StatsCacheTTL bounds staleness of cached per-hook counters.
	StatsCacheTTL time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries
	// on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		PollInterval:      1 * time.Second,
		BatchSize:         50,
		RequestTimeout:    30 * time.Second,
		MaxRetries:        3,
		RetrySchedule:     delivery.DefaultBackoffSchedule,
		RetriableStatuses: delivery.DefaultRetriableStatuses,
		UserAgent:         "courier/1.0",
		StalledPendingAge: 2 * time.Hour,
		ZombieTimeout:     30 * time.Minute,
		SweepInterval:     5 * time.Minute,
		PendingRetryAge:   24 * time.Hour,
		StatsCacheTTL:     stats.DefaultTTL,
		ShutdownTimeout:   30 * time.Second,
	}
}
