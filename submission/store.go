// Package submission defines the contract to the external submission store.
//
// Courier never owns submission data; it references submissions by ID and
// fetches their content on demand, in the export format of the requesting
// hook. A submission disappearing from the store is a normal, permanent
// delivery outcome, not a crash.
package submission

import (
	"context"
	"errors"

	"github.com/datafield/courier/hook"
)

// ErrNotFound is returned when the submission store has no content for the
// requested submission ID.
var ErrNotFound = errors.New("submission: not found")

// Content is one unit of collected form data, serialized for delivery.
// Exactly one of JSON or XML is populated, per the requested format.
type Content struct {
	// JSON holds the submission as a flat map of slash-separated field
	// paths ("group1/q2") to values.
	JSON map[string]any

	// XML holds the submission document bytes.
	XML []byte
}

// Store fetches submission content from the external submission store.
type Store interface {
	// Get returns the submission's content in the given format, scoped to
	// the requesting owner. Returns ErrNotFound when the submission does
	// not exist or is not visible to the owner.
	Get(ctx context.Context, submissionID int64, owner string, format hook.Format) (*Content, error)
}
