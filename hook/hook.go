package hook

import (
	"github.com/datafield/courier/id"
	"github.com/datafield/courier/internal/entity"
)

// AuthMode selects how outbound requests authenticate against the endpoint.
type AuthMode string

const (
	// AuthNone sends no credentials.
	AuthNone AuthMode = "none"

	// AuthBasic attaches the configured username/password as HTTP basic auth.
	AuthBasic AuthMode = "basic"
)

// Format selects the payload serialization for a hook.
type Format string

const (
	// FormatJSON delivers submissions as application/json.
	FormatJSON Format = "json"

	// FormatXML delivers submissions as application/xml.
	FormatXML Format = "xml"
)

// ContentType returns the MIME type sent with payloads of this format.
func (f Format) ContentType() string {
	if f == FormatXML {
		return "application/xml"
	}
	return "application/json"
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatXML
}

// PlaceholderToken is the substring of a payload template replaced with the
// serialized submission at build time.
const PlaceholderToken = "%SUBMISSION%"

// Settings holds free-form per-hook delivery options.
type Settings struct {
	// CustomHeaders are extra HTTP headers sent with every delivery.
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`

	// Username is the basic-auth user. Only used when AuthMode is basic.
	Username string `json:"username,omitempty"`

	// Password is the basic-auth password. Never serialized.
	Password string `json:"-"`
}

// Hook is a configured external HTTP endpoint that receives submission data
// for one project.
type Hook struct {
	entity.Entity

	// ID is the unique TypeID for this hook.
	ID id.ID `json:"id"`

	// ProjectID identifies the project that owns this hook.
	ProjectID string `json:"project_id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Endpoint is the destination URL.
	Endpoint string `json:"endpoint"`

	// Active gates delivery. Inactive hooks never deliver; their pending
	// logs are left alone so delivery can resume on reactivation.
	Active bool `json:"active"`

	// AuthMode selects outbound authentication.
	AuthMode AuthMode `json:"auth_mode"`

	// Format selects the payload serialization.
	Format Format `json:"export_type"`

	// SubsetFields restricts the payload to matching field paths.
	// Empty means include everything.
	SubsetFields []string `json:"subset_fields,omitempty"`

	// PayloadTemplate wraps the serialized submission. JSON format only.
	PayloadTemplate string `json:"payload_template,omitempty"`

	// EmailNotification requests an operator notification on permanent
	// delivery failure.
	EmailNotification bool `json:"email_notification"`

	// Settings holds custom headers and basic-auth credentials.
	Settings Settings `json:"settings"`
}

// ListOpts configures filtering and pagination for hook listing.
type ListOpts struct {
	Offset int
	Limit  int
	Active *bool
}
