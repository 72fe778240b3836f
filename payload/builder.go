// Package payload builds the exact bytes sent to a hook endpoint from a
// submission's content and the hook's shaping options (field subset,
// payload template, export format).
package payload

import (
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/submission"
)

// Builder produces the outbound payload for one export format.
type Builder interface {
	// Build returns the payload bytes and their content type.
	Build(c *submission.Content, h *hook.Hook) ([]byte, string, error)
}

// ForFormat returns the builder for a hook's export format.
func ForFormat(f hook.Format) Builder {
	if f == hook.FormatXML {
		return XMLBuilder{}
	}
	return JSONBuilder{}
}
