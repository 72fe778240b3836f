package delivery

import (
	"context"
	"log/slog"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
)

// Notifier is told about permanent delivery failures on hooks that have the
// email-notification flag set. Implementations typically queue an operator
// email; the default implementation only logs.
type Notifier interface {
	NotifyFailure(ctx context.Context, h *hook.Hook, l *hooklog.Log)
}

// NopNotifier discards failure notifications.
type NopNotifier struct{}

// NotifyFailure implements Notifier.
func (NopNotifier) NotifyFailure(context.Context, *hook.Hook, *hooklog.Log) {}

// LogNotifier records failure notifications through a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyFailure implements Notifier.
func (n LogNotifier) NotifyFailure(ctx context.Context, h *hook.Hook, l *hooklog.Log) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "delivery failed permanently",
		"hook_id", h.ID, "hook_name", h.Name, "project_id", h.ProjectID,
		"log_id", l.ID, "submission_id", l.SubmissionID,
		"status", l.StatusCode, "message", l.Message)
}
