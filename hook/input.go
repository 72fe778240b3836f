package hook

// Input is the creation/update payload for hooks.
type Input struct {
	// ProjectID identifies the project that owns this hook.
	ProjectID string `json:"project_id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Endpoint is the destination URL.
	Endpoint string `json:"endpoint"`

	// Active gates delivery. Defaults to true on create.
	Active *bool `json:"active,omitempty"`

	// AuthMode selects outbound authentication. Defaults to none.
	AuthMode AuthMode `json:"auth_mode,omitempty"`

	// Format selects the payload serialization. Defaults to json.
	Format Format `json:"export_type,omitempty"`

	// SubsetFields restricts the payload to matching field paths.
	SubsetFields []string `json:"subset_fields,omitempty"`

	// PayloadTemplate wraps the serialized submission. JSON format only.
	// On update, a pointer to the empty string clears the stored template.
	PayloadTemplate *string `json:"payload_template,omitempty"`

	// EmailNotification requests operator notification on permanent failure.
	EmailNotification *bool `json:"email_notification,omitempty"`

	// Settings holds custom headers and basic-auth credentials.
	Settings *Settings `json:"settings,omitempty"`
}
