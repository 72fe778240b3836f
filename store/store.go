// Package store defines the composite Store interface for all Courier
// persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them all, so components depend only on the slice they use.
package store

import (
	"context"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
)

// Store is the aggregate persistence interface.
type Store interface {
	hook.Store
	hooklog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
