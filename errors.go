package courier

import "errors"

// Sentinel errors returned by Courier operations.
var (
	// ErrNoStore is returned when a Courier is created without a store.
	ErrNoStore = errors.New("courier: store is required")

	// ErrNoSubmissionStore is returned when a Courier is created without a
	// submission store.
	ErrNoSubmissionStore = errors.New("courier: submission store is required")

	// ErrHookNotFound is returned when a hook cannot be found.
	ErrHookNotFound = errors.New("courier: hook not found")

	// ErrLogNotFound is returned when a delivery log cannot be found.
	ErrLogNotFound = errors.New("courier: delivery log not found")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("courier: store is closed")
)
