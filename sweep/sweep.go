// Package sweep repairs delivery logs orphaned by worker crashes and
// restarts.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/datafield/courier/clock"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
	"github.com/datafield/courier/observability"
)

// zombieMessage is recorded on processing logs finalized by the sweep. The
// request may already have reached the endpoint, so the log is failed
// rather than re-queued and an operator has to confirm before retrying.
const zombieMessage = "delivery was interrupted: the request MAY have been sent " +
	"to the endpoint before the worker stopped; verify manually before retrying"

// Store is the persistence contract the sweeper needs.
type Store interface {
	ListStalledPending(ctx context.Context, before time.Time) ([]*hooklog.Log, error)
	ListZombieProcessing(ctx context.Context, before time.Time) ([]*hooklog.Log, error)
	Apply(ctx context.Context, t hooklog.Transition) (*hooklog.Log, error)
}

// StatsInvalidator drops cached per-hook delivery counters after a repair.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, hookID id.ID)
}

// Config holds sweeper configuration.
type Config struct {
	// StalledPendingAge is how long an untouched fresh pending log may sit
	// before it is considered stalled and re-queued.
	StalledPendingAge time.Duration

	// ZombieTimeout is how long a processing log may sit before its worker
	// is presumed dead and the log is force-failed.
	ZombieTimeout time.Duration

	// Interval is how often both sweeps run.
	Interval time.Duration

	Metrics *observability.Metrics
	Stats   StatsInvalidator
}

// Sweeper periodically runs the stalled-pending and zombie-processing
// recovery sweeps.
type Sweeper struct {
	store  Store
	clock  clock.Clock
	config Config
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper. A nil clk uses the real clock.
func NewSweeper(store Store, clk clock.Clock, cfg Config, logger *slog.Logger) *Sweeper {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, clock: clk, config: cfg, logger: logger}
}

// Start begins the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Run(ctx)
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop(_ context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Run executes both sweeps once.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweepStalledPending(ctx)
	s.sweepZombieProcessing(ctx)
}

// sweepStalledPending re-queues fresh pending logs whose worker never
// claimed them, making them due immediately.
func (s *Sweeper) sweepStalledPending(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.config.StalledPendingAge)
	logs, err := s.store.ListStalledPending(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "list stalled pending failed", "error", err)
		return
	}

	var repaired int
	now := s.clock.Now()
	for _, l := range logs {
		if _, err := s.store.Apply(ctx, hooklog.Transition{
			LogID:         l.ID,
			From:          []hooklog.State{hooklog.StatePending},
			State:         hooklog.StatePending,
			StatusCode:    hooklog.StatusNoResponse,
			NextAttemptAt: &now,
		}); err != nil {
			s.logger.ErrorContext(ctx, "re-queue stalled log failed",
				"log_id", l.ID, "error", err)
			continue
		}
		s.invalidate(ctx, l.HookID)
		repaired++
	}

	if repaired > 0 {
		if s.config.Metrics != nil {
			s.config.Metrics.RecordSweep("stalled_pending", repaired)
		}
		s.logger.InfoContext(ctx, "re-queued stalled pending logs",
			"count", repaired, "cutoff", cutoff)
	}
}

// sweepZombieProcessing force-fails processing logs whose worker is
// presumed dead. Applies to logs of deactivated hooks as well.
func (s *Sweeper) sweepZombieProcessing(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.config.ZombieTimeout)
	logs, err := s.store.ListZombieProcessing(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "list zombie processing failed", "error", err)
		return
	}

	var repaired int
	for _, l := range logs {
		if _, err := s.store.Apply(ctx, hooklog.Transition{
			LogID:      l.ID,
			From:       []hooklog.State{hooklog.StateProcessing},
			State:      hooklog.StateFailed,
			StatusCode: hooklog.StatusNoResponse,
			Message:    zombieMessage,
		}); err != nil {
			s.logger.ErrorContext(ctx, "finalize zombie log failed",
				"log_id", l.ID, "error", err)
			continue
		}
		s.invalidate(ctx, l.HookID)
		repaired++
	}

	if repaired > 0 {
		if s.config.Metrics != nil {
			s.config.Metrics.RecordSweep("zombie_processing", repaired)
		}
		s.logger.WarnContext(ctx, "finalized zombie processing logs",
			"count", repaired, "cutoff", cutoff)
	}
}

func (s *Sweeper) invalidate(ctx context.Context, hookID id.ID) {
	if s.config.Stats != nil {
		s.config.Stats.Invalidate(ctx, hookID)
	}
}
