package hook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/datafield/courier/id"
	"github.com/datafield/courier/internal/entity"
)

// Service provides hook management operations.
type Service struct {
	store         Store
	allowInsecure bool
	logger        *slog.Logger
}

// NewService creates a new hook service. When allowInsecure is false,
// only https endpoints are accepted.
func NewService(store Store, allowInsecure bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:         store,
		allowInsecure: allowInsecure,
		logger:        logger,
	}
}

// Create registers a new hook under a project.
func (svc *Service) Create(ctx context.Context, in Input) (*Hook, error) {
	if in.ProjectID == "" {
		return nil, &ValidationError{Field: "project_id", Message: "required"}
	}
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}

	if err := svc.validateEndpoint(in.Endpoint); err != nil {
		return nil, err
	}

	format := in.Format
	if format == "" {
		format = FormatJSON
	}
	if !format.Valid() {
		return nil, &ValidationError{Field: "export_type", Message: "must be json or xml"}
	}

	authMode := in.AuthMode
	if authMode == "" {
		authMode = AuthNone
	}
	if authMode != AuthNone && authMode != AuthBasic {
		return nil, &ValidationError{Field: "auth_mode", Message: "must be none or basic"}
	}

	settings := Settings{}
	if in.Settings != nil {
		settings = *in.Settings
	}
	if authMode == AuthBasic && (settings.Username == "" || settings.Password == "") {
		return nil, &ValidationError{Field: "settings", Message: "basic auth requires username and password"}
	}

	template := ""
	if in.PayloadTemplate != nil {
		template = *in.PayloadTemplate
	}
	if err := validateTemplate(template, format); err != nil {
		return nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	emailNotification := false
	if in.EmailNotification != nil {
		emailNotification = *in.EmailNotification
	}

	h := &Hook{
		Entity:            entity.New(),
		ID:                id.NewHookID(),
		ProjectID:         in.ProjectID,
		Name:              in.Name,
		Endpoint:          in.Endpoint,
		Active:            active,
		AuthMode:          authMode,
		Format:            format,
		SubsetFields:      in.SubsetFields,
		PayloadTemplate:   template,
		EmailNotification: emailNotification,
		Settings:          settings,
	}

	if err := svc.store.CreateHook(ctx, h); err != nil {
		return nil, err
	}

	svc.logger.DebugContext(ctx, "hook created",
		"hook_id", h.ID, "project_id", h.ProjectID, "endpoint", h.Endpoint)

	return h, nil
}

// Get returns a hook by ID.
func (svc *Service) Get(ctx context.Context, hookID id.ID) (*Hook, error) {
	return svc.store.GetHook(ctx, hookID)
}

// Update modifies an existing hook. Zero-valued input fields are left as-is.
func (svc *Service) Update(ctx context.Context, hookID id.ID, in Input) (*Hook, error) {
	h, err := svc.store.GetHook(ctx, hookID)
	if err != nil {
		return nil, err
	}

	if in.Endpoint != "" {
		if err := svc.validateEndpoint(in.Endpoint); err != nil {
			return nil, err
		}
		h.Endpoint = in.Endpoint
	}
	if in.Name != "" {
		h.Name = in.Name
	}
	if in.Active != nil {
		h.Active = *in.Active
	}
	if in.Format != "" {
		if !in.Format.Valid() {
			return nil, &ValidationError{Field: "export_type", Message: "must be json or xml"}
		}
		h.Format = in.Format
	}
	if in.AuthMode != "" {
		if in.AuthMode != AuthNone && in.AuthMode != AuthBasic {
			return nil, &ValidationError{Field: "auth_mode", Message: "must be none or basic"}
		}
		h.AuthMode = in.AuthMode
	}
	if in.SubsetFields != nil {
		h.SubsetFields = in.SubsetFields
	}
	if in.PayloadTemplate != nil {
		// A pointer to the empty string clears the stored template.
		h.PayloadTemplate = *in.PayloadTemplate
	}
	if in.EmailNotification != nil {
		h.EmailNotification = *in.EmailNotification
	}
	if in.Settings != nil {
		// Responses redact the password, so clients cannot echo it back.
		// An omitted password on update keeps the stored one.
		s := *in.Settings
		if s.Password == "" {
			s.Password = h.Settings.Password
		}
		h.Settings = s
	}

	// Re-check cross-field invariants against the merged result.
	if err := validateTemplate(h.PayloadTemplate, h.Format); err != nil {
		return nil, err
	}
	if h.AuthMode == AuthBasic && (h.Settings.Username == "" || h.Settings.Password == "") {
		return nil, &ValidationError{Field: "settings", Message: "basic auth requires username and password"}
	}

	if err := svc.store.UpdateHook(ctx, h); err != nil {
		return nil, err
	}

	return h, nil
}

// Delete removes a hook and its delivery logs.
func (svc *Service) Delete(ctx context.Context, hookID id.ID) error {
	return svc.store.DeleteHook(ctx, hookID)
}

// List returns hooks for a project.
func (svc *Service) List(ctx context.Context, projectID string, opts ListOpts) ([]*Hook, error) {
	return svc.store.ListHooks(ctx, projectID, opts)
}

// SetActive toggles a hook.
func (svc *Service) SetActive(ctx context.Context, hookID id.ID, active bool) error {
	return svc.store.SetActive(ctx, hookID, active)
}

// validateEndpoint checks the destination URL scheme against the insecure
// endpoint policy.
func (svc *Service) validateEndpoint(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return &ValidationError{Field: "endpoint", Message: "invalid URL"}
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !svc.allowInsecure {
			return &ValidationError{Field: "endpoint", Message: "insecure endpoints are not allowed"}
		}
	default:
		return &ValidationError{Field: "endpoint", Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "endpoint", Message: "missing host"}
	}
	return nil
}

// validateTemplate checks that a payload template produces well-formed JSON
// once the placeholder is substituted, and that it is only combined with the
// JSON format.
func validateTemplate(template string, format Format) error {
	if template == "" {
		return nil
	}
	if format != FormatJSON {
		return &ValidationError{Field: "payload_template", Message: "only valid with json format"}
	}
	if !strings.Contains(template, PlaceholderToken) {
		return &ValidationError{Field: "payload_template", Message: "missing " + PlaceholderToken + " placeholder"}
	}
	rendered := strings.ReplaceAll(template, PlaceholderToken, "{}")
	if !json.Valid([]byte(rendered)) {
		return &ValidationError{Field: "payload_template", Message: "does not produce valid JSON"}
	}
	return nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "hook validation: " + e.Field + ": " + e.Message
}
