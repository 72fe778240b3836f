// Package dispatch fans submission lifecycle events out to the delivery
// logs of a project's active hooks.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
)

// EventKind names the submission lifecycle moments that trigger dispatch.
// The kind selects nothing today: every kind funnels into the same
// create-if-absent behavior, so an edited submission whose log already
// exists is not re-sent automatically.
type EventKind string

const (
	KindSubmit           EventKind = "submit"
	KindEdit             EventKind = "edit"
	KindDelete           EventKind = "delete"
	KindValidationChange EventKind = "validation_change"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case KindSubmit, KindEdit, KindDelete, KindValidationChange:
		return true
	}
	return false
}

// HookStore is the hook lookup the dispatcher needs.
type HookStore interface {
	ListActiveHooks(ctx context.Context, projectID string) ([]*hook.Hook, error)
}

// LogStore is the log creation contract the dispatcher needs.
type LogStore interface {
	CreateLogIfAbsent(ctx context.Context, l *hooklog.Log) (bool, error)
}

// Dispatcher creates pending delivery logs for submission events. Created
// rows become visible to the delivery engine once the surrounding storage
// commit lands, so a submission is never announced before it is readable.
type Dispatcher struct {
	hooks  HookStore
	logs   LogStore
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(hooks HookStore, logs LogStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{hooks: hooks, logs: logs, logger: logger}
}

// Dispatch creates one pending log per active hook of the project for the
// given submission, skipping pairs that already have a log. Returns true
// when at least one new log was created.
//
// A partial failure leaves earlier creations in place: dispatch is safe to
// repeat because creation is create-if-absent.
func (d *Dispatcher) Dispatch(ctx context.Context, projectID string, submissionID int64, kind EventKind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("dispatch: unknown event kind %q", kind)
	}

	hooks, err := d.hooks.ListActiveHooks(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("dispatch: list active hooks: %w", err)
	}

	var created int
	for _, h := range hooks {
		ok, err := d.logs.CreateLogIfAbsent(ctx, hooklog.New(h.ID, submissionID))
		if err != nil {
			return created > 0, fmt.Errorf("dispatch: create log for hook %s: %w", h.ID, err)
		}
		if ok {
			created++
		}
	}

	d.logger.DebugContext(ctx, "dispatched submission event",
		"project_id", projectID, "submission_id", submissionID,
		"kind", kind, "hooks", len(hooks), "created", created)

	return created > 0, nil
}
