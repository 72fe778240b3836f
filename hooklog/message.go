package hooklog

import (
	"encoding/json"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxMessageLen caps the stored outcome message.
const MaxMessageLen = 1024

var stripPolicy = bluemonday.StrictPolicy()

// SanitizeMessage prepares a response body or error text for storage.
// Valid JSON is kept as-is; anything else has HTML-like tags stripped so
// that raw error pages are never reflected verbatim. The result is trimmed
// and truncated to MaxMessageLen.
func SanitizeMessage(s string) string {
	if s == "" {
		return ""
	}
	if !json.Valid([]byte(s)) {
		s = strings.TrimSpace(stripPolicy.Sanitize(s))
	}
	if len(s) > MaxMessageLen {
		s = s[:MaxMessageLen]
	}
	return s
}
