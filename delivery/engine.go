package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
)

// EngineStore is the interface the engine needs to claim and resolve work.
type EngineStore interface {
	// Dequeue atomically claims up to limit due pending logs belonging to
	// active hooks, moving them to processing. Concurrent engines never
	// receive the same row.
	Dequeue(ctx context.Context, limit int) ([]*hooklog.Log, error)
	GetHook(ctx context.Context, hookID id.ID) (*hook.Hook, error)
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency  int
	PollInterval time.Duration
	BatchSize    int
}

// Engine is the delivery worker pool that claims due logs and hands them to
// the executor.
type Engine struct {
	store    EngineStore
	executor *Executor
	config   EngineConfig
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, executor *Executor, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		executor: executor,
		config:   cfg,
		logger:   logger,
	}
}

// Start begins the delivery workers and poll loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight deliveries to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// pollLoop periodically claims due logs and dispatches them to workers.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := e.store.Dequeue(ctx, e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "dequeue failed", "error", err)
				continue
			}

			for _, l := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				e.wg.Add(1)
				go func(claimed *hooklog.Log) {
					defer e.wg.Done()
					defer func() { <-sem }()
					e.process(ctx, claimed)
				}(l)
			}
		}
	}
}

// process resolves the hook for a claimed log and runs one delivery attempt.
func (e *Engine) process(ctx context.Context, l *hooklog.Log) {
	h, err := e.store.GetHook(ctx, l.HookID)
	if err != nil {
		e.logger.ErrorContext(ctx, "get hook failed",
			"log_id", l.ID, "hook_id", l.HookID, "error", err)
		return
	}

	if _, err := e.executor.Send(ctx, h, l); err != nil {
		if errors.Is(err, ErrRemoteServerDown) {
			e.logger.DebugContext(ctx, "remote server down, delivery re-queued",
				"log_id", l.ID, "hook_id", h.ID)
			return
		}
		e.logger.ErrorContext(ctx, "delivery attempt failed",
			"log_id", l.ID, "hook_id", h.ID, "error", err)
	}
}
