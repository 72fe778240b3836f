package payload

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/submission"
)

// JSONBuilder serializes submissions as application/json, applying the
// hook's field subset and payload template.
type JSONBuilder struct{}

// Build implements Builder.
func (JSONBuilder) Build(c *submission.Content, h *hook.Hook) ([]byte, string, error) {
	data := c.JSON
	if len(h.SubsetFields) > 0 {
		data = subsetJSON(data, h.SubsetFields)
	}

	serialized, err := json.Marshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("payload: marshal submission: %w", err)
	}

	if h.PayloadTemplate != "" {
		rendered := strings.ReplaceAll(h.PayloadTemplate, hook.PlaceholderToken, string(serialized))
		if !json.Valid([]byte(rendered)) {
			return nil, "", fmt.Errorf("payload: template substitution produced invalid JSON")
		}
		return []byte(rendered), hook.FormatJSON.ContentType(), nil
	}

	return serialized, hook.FormatJSON.ContentType(), nil
}

// subsetJSON keeps only entries whose flattened key matches one of the
// configured paths. A path containing a separator matches only the exact
// flattened key; a bare field name matches as a whole segment anywhere in
// the key, so nested group fields are included.
func subsetJSON(data map[string]any, fields []string) map[string]any {
	out := make(map[string]any)
	for key, value := range data {
		if matchesAny(key, fields) {
			out[key] = value
		}
	}
	return out
}

func matchesAny(key string, fields []string) bool {
	for _, f := range fields {
		if strings.Contains(f, "/") {
			if key == f {
				return true
			}
			continue
		}
		for _, segment := range strings.Split(key, "/") {
			if segment == f {
				return true
			}
		}
	}
	return false
}
