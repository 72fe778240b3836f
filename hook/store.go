package hook

import (
	"context"

	"github.com/datafield/courier/id"
)

// Store defines the persistence contract for hooks.
type Store interface {
	// CreateHook persists a new hook.
	CreateHook(ctx context.Context, h *Hook) error

	// GetHook returns a hook by ID.
	GetHook(ctx context.Context, hookID id.ID) (*Hook, error)

	// UpdateHook modifies an existing hook.
	UpdateHook(ctx context.Context, h *Hook) error

	// DeleteHook removes a hook and cascades to its delivery logs.
	DeleteHook(ctx context.Context, hookID id.ID) error

	// ListHooks returns hooks for a project, optionally filtered.
	ListHooks(ctx context.Context, projectID string, opts ListOpts) ([]*Hook, error)

	// ListActiveHooks returns the active hooks for a project.
	// This is the dispatch hot path.
	ListActiveHooks(ctx context.Context, projectID string) ([]*Hook, error)

	// SetActive toggles a hook without deleting it.
	SetActive(ctx context.Context, hookID id.ID, active bool) error
}
