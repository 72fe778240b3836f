package courier

import (
	"log/slog"
	"time"

	"github.com/datafield/courier/clock"
	"github.com/datafield/courier/delivery"
	"github.com/datafield/courier/dispatch"
	"github.com/datafield/courier/egress"
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/observability"
	"github.com/datafield/courier/stats"
	"github.com/datafield/courier/store"
	"github.com/datafield/courier/submission"
	"github.com/datafield/courier/sweep"
)

// Courier is the root outbound delivery engine.
type Courier struct {
	config       Config
	store        store.Store
	submissions  submission.Store
	egressPolicy egress.Policy
	notifier     delivery.Notifier
	statsCache   stats.Cache
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	clock        clock.Clock
	logger       *slog.Logger

	hookSvc    *hook.Service
	logSvc     *hooklog.Service
	dispatcher *dispatch.Dispatcher
	executor   *delivery.Executor
	engine     *delivery.Engine
	sweeper    *sweep.Sweeper
}

// Option configures a Courier instance.
type Option func(*Courier) error

// New creates a new Courier with the given options. A store and a
// submission store are required.
func New(opts ...Option) (*Courier, error) {
	c := &Courier{
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  clock.Real{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		return nil, ErrNoStore
	}
	if c.submissions == nil {
		return nil, ErrNoSubmissionStore
	}
	c.wireServices()
	return c, nil
}

// WithStore sets the persistence backend for the Courier instance.
func WithStore(s store.Store) Option {
	return func(c *Courier) error {
		c.store = s
		return nil
	}
}

// WithSubmissionStore sets where submission content is loaded from.
func WithSubmissionStore(s submission.Store) Option {
	return func(c *Courier) error {
		c.submissions = s
		return nil
	}
}

// WithLogger sets the structured logger for the Courier instance.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Courier) error {
		c.logger = logger
		return nil
	}
}

// WithNotifier sets the permanent-failure notifier.
func WithNotifier(n delivery.Notifier) Option {
	return func(c *Courier) error {
		c.notifier = n
		return nil
	}
}

// WithEgressPolicy sets the outbound destination policy.
func WithEgressPolicy(p egress.Policy) Option {
	return func(c *Courier) error {
		c.egressPolicy = p
		return nil
	}
}

// WithStatsCache sets the per-hook counters cache. Defaults to an
// in-process cache backed by the store.
func WithStatsCache(cache stats.Cache) Option {
	return func(c *Courier) error {
		c.statsCache = cache
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Courier) error {
		c.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Courier) error {
		c.tracer = t
		return nil
	}
}

// WithClock sets the time source used by the recovery sweeps.
func WithClock(clk clock.Clock) Option {
	return func(c *Courier) error {
		c.clock = clk
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(c *Courier) error {
		c.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the delivery engine checks for due logs.
func WithPollInterval(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of logs claimed per poll cycle.
func WithBatchSize(n int) Option {
	return func(c *Courier) error {
		c.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.RequestTimeout = d
		return nil
	}
}

// WithMaxRetries sets the automatic-retry ceiling.
func WithMaxRetries(n int) Option {
	return func(c *Courier) error {
		c.config.MaxRetries = n
		return nil
	}
}

// WithRetrySchedule sets the backoff intervals between retry attempts.
func WithRetrySchedule(schedule []time.Duration) Option {
	return func(c *Courier) error {
		c.config.RetrySchedule = schedule
		return nil
	}
}

// WithRetriableStatuses sets the HTTP statuses treated as transient.
func WithRetriableStatuses(statuses []int) Option {
	return func(c *Courier) error {
		c.config.RetriableStatuses = statuses
		return nil
	}
}

// WithUserAgent sets the User-Agent sent on outbound requests.
func WithUserAgent(ua string) Option {
	return func(c *Courier) error {
		c.config.UserAgent = ua
		return nil
	}
}

// WithAllowInsecureEndpoints permits plain-HTTP hook endpoints.
func WithAllowInsecureEndpoints(allow bool) Option {
	return func(c *Courier) error {
		c.config.AllowInsecureEndpoints = allow
		return nil
	}
}

// WithStalledPendingAge sets the stalled-pending sweep cutoff.
func WithStalledPendingAge(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.StalledPendingAge = d
		return nil
	}
}

// WithZombieTimeout sets the zombie-processing sweep cutoff.
func WithZombieTimeout(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.ZombieTimeout = d
		return nil
	}
}

// WithSweepInterval sets how often the recovery sweeps run.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.SweepInterval = d
		return nil
	}
}

// WithPendingRetryAge sets how long a stuck pending log must sit before
// manual retry is allowed.
func WithPendingRetryAge(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.PendingRetryAge = d
		return nil
	}
}

// WithStatsCacheTTL bounds staleness of cached per-hook counters.
func WithStatsCacheTTL(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.StatsCacheTTL = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight
// deliveries on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.ShutdownTimeout = d
		return nil
	}
}
