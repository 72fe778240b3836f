package courier

import (
	"context"
	"time"

	"github.com/datafield/courier/delivery"
	"github.com/datafield/courier/dispatch"
	"github.com/datafield/courier/egress"
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/stats"
	"github.com/datafield/courier/store"
	"github.com/datafield/courier/sweep"
)

// wireServices initializes the internal services after options have been applied.
func (c *Courier) wireServices() {
	c.hookSvc = hook.NewService(c.store, c.config.AllowInsecureEndpoints, c.logger)

	c.logSvc = hooklog.NewService(c.store, hooklog.RetryPolicy{
		MaxRetries: c.config.MaxRetries,
		PendingAge: c.config.PendingRetryAge,
	}, c.logger)

	if c.statsCache == nil {
		c.statsCache = stats.NewMemoryCache(c.store, c.config.StatsCacheTTL)
	}

	guard := egress.NewGuard(c.egressPolicy)

	c.executor = delivery.NewExecutor(c.store, c.submissions, guard, delivery.ExecutorConfig{
		Config:   c.snapshot,
		Notifier: c.notifier,
		Stats:    c.statsCache,
		Metrics:  c.metrics,
		Tracer:   c.tracer,
	}, c.logger)

	c.engine = delivery.NewEngine(c.store, c.executor, delivery.EngineConfig{
		Concurrency:  c.config.Concurrency,
		PollInterval: c.config.PollInterval,
		BatchSize:    c.config.BatchSize,
	}, c.logger)

	c.sweeper = sweep.NewSweeper(c.store, c.clock, sweep.Config{
		StalledPendingAge: c.config.StalledPendingAge,
		ZombieTimeout:     c.config.ZombieTimeout,
		Interval:          c.config.SweepInterval,
		Metrics:           c.metrics,
		Stats:             c.statsCache,
	}, c.logger)

	c.dispatcher = dispatch.NewDispatcher(c.store, c.store, c.logger)
}

// snapshot captures the delivery configuration for one work unit.
func (c *Courier) snapshot() delivery.Snapshot {
	return delivery.Snapshot{
		MaxRetries:        c.config.MaxRetries,
		RequestTimeout:    c.config.RequestTimeout,
		RetriableStatuses: c.config.RetriableStatuses,
		Backoff:           delivery.NewBackoff(c.config.RetrySchedule),
		UserAgent:         c.config.UserAgent,
	}
}

// Start begins the delivery engine and the recovery sweeps.
func (c *Courier) Start(ctx context.Context) {
	c.engine.Start(ctx)
	c.sweeper.Start(ctx)
}

// Stop gracefully shuts down the engine and the sweeps, waiting up to
// ShutdownTimeout for in-flight deliveries to record their outcomes. Work
// still running past the deadline is abandoned; the recovery sweeps repair
// it on the next start. The wait goroutine itself keeps running until those
// attempts finish, which RequestTimeout bounds per attempt, so a host that
// keeps the process alive leaks no permanent goroutine.
func (c *Courier) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		c.engine.Stop(ctx)
		c.sweeper.Stop(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.config.ShutdownTimeout):
		c.logger.WarnContext(ctx, "shutdown timeout reached, abandoning in-flight deliveries",
			"timeout", c.config.ShutdownTimeout)
	}
}

// Dispatch creates pending delivery logs for a submission event across the
// project's active hooks. Returns true when at least one new log was
// created. Call after the submission itself is durably stored.
func (c *Courier) Dispatch(ctx context.Context, projectID string, submissionID int64, kind dispatch.EventKind) (bool, error) {
	return c.dispatcher.Dispatch(ctx, projectID, submissionID, kind)
}

// Hooks returns the hook management service.
func (c *Courier) Hooks() *hook.Service {
	return c.hookSvc
}

// Logs returns the delivery log service.
func (c *Courier) Logs() *hooklog.Service {
	return c.logSvc
}

// Stats returns the per-hook counters cache.
func (c *Courier) Stats() stats.Cache {
	return c.statsCache
}

// Store returns the underlying store.
func (c *Courier) Store() store.Store {
	return c.store
}

// Sweeper returns the recovery sweeper, exposed for manual runs.
func (c *Courier) Sweeper() *sweep.Sweeper {
	return c.sweeper
}
