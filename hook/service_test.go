package hook_test

import (
	"context"
	"errors"
	"testing"

	courier "github.com/datafield/courier"
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/store/memory"
)

func newService(t *testing.T, allowInsecure bool) *hook.Service {
	t.Helper()
	return hook.NewService(memory.New(), allowInsecure, nil)
}

func strPtr(s string) *string { return &s }

func validInput() hook.Input {
	return hook.Input{
		ProjectID: "proj_1",
		Name:      "crm sync",
		Endpoint:  "https://example.com/intake",
	}
}

func TestCreateDefaults(t *testing.T) {
	svc := newService(t, false)

	h, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}

	if !h.Active {
		t.Fatal("expected new hooks to default to active")
	}
	if h.Format != hook.FormatJSON {
		t.Fatalf("format = %q, want json", h.Format)
	}
	if h.AuthMode != hook.AuthNone {
		t.Fatalf("auth mode = %q, want none", h.AuthMode)
	}
	if h.ID.IsNil() {
		t.Fatal("expected an assigned ID")
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*hook.Input)
		allowInsecure bool
		wantField     string
	}{
		{
			name:      "missing project",
			mutate:    func(in *hook.Input) { in.ProjectID = "" },
			wantField: "project_id",
		},
		{
			name:      "missing name",
			mutate:    func(in *hook.Input) { in.Name = "" },
			wantField: "name",
		},
		{
			name:      "missing endpoint",
			mutate:    func(in *hook.Input) { in.Endpoint = "" },
			wantField: "endpoint",
		},
		{
			name:      "http rejected by default",
			mutate:    func(in *hook.Input) { in.Endpoint = "http://example.com" },
			wantField: "endpoint",
		},
		{
			name:      "unsupported scheme",
			mutate:    func(in *hook.Input) { in.Endpoint = "ftp://example.com" },
			wantField: "endpoint",
		},
		{
			name:      "unknown format",
			mutate:    func(in *hook.Input) { in.Format = "yaml" },
			wantField: "export_type",
		},
		{
			name:      "basic auth without credentials",
			mutate:    func(in *hook.Input) { in.AuthMode = hook.AuthBasic },
			wantField: "settings",
		},
		{
			name: "template without placeholder",
			mutate: func(in *hook.Input) {
				in.PayloadTemplate = strPtr(`{"data":"static"}`)
			},
			wantField: "payload_template",
		},
		{
			name: "template producing invalid JSON",
			mutate: func(in *hook.Input) {
				in.PayloadTemplate = strPtr(`{"data":%SUBMISSION%`)
			},
			wantField: "payload_template",
		},
		{
			name: "template with xml format",
			mutate: func(in *hook.Input) {
				in.Format = hook.FormatXML
				in.PayloadTemplate = strPtr(`{"data":%SUBMISSION%}`)
			},
			wantField: "payload_template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, tt.allowInsecure)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			var verr *hook.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Fatalf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestCreateInsecureAllowed(t *testing.T) {
	svc := newService(t, true)

	in := validInput()
	in.Endpoint = "http://internal.example.com/intake"
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("expected http endpoint to be accepted, got %v", err)
	}
}

func TestCreateBasicAuth(t *testing.T) {
	svc := newService(t, false)

	in := validInput()
	in.AuthMode = hook.AuthBasic
	in.Settings = &hook.Settings{Username: "svc", Password: "secret"}
	h, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if h.Settings.Username != "svc" {
		t.Fatalf("username = %q", h.Settings.Username)
	}
}

func TestUpdateMerge(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()

	h, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	inactive := false
	updated, err := svc.Update(ctx, h.ID, hook.Input{
		Name:   "renamed",
		Active: &inactive,
	})
	if err != nil {
		t.Fatal(err)
	}

	if updated.Name != "renamed" {
		t.Fatalf("name = %q", updated.Name)
	}
	if updated.Active {
		t.Fatal("expected hook to be deactivated")
	}
	// Untouched fields keep their values.
	if updated.Endpoint != h.Endpoint {
		t.Fatalf("endpoint changed to %q", updated.Endpoint)
	}
}

func TestUpdateRechecksMergedInvariants(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()

	h, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	// Switching to basic auth without supplying credentials must fail even
	// though the auth mode field alone is valid.
	_, err = svc.Update(ctx, h.ID, hook.Input{AuthMode: hook.AuthBasic})
	var verr *hook.ValidationError
	if !errors.As(err, &verr) || verr.Field != "settings" {
		t.Fatalf("expected settings validation error, got %v", err)
	}
}

func TestUpdatePreservesPasswordWhenOmitted(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()

	in := validInput()
	in.AuthMode = hook.AuthBasic
	in.Settings = &hook.Settings{Username: "svc", Password: "secret"}
	h, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}

	// Clients never see the password, so an update that touches settings
	// without re-sending it keeps the stored one.
	updated, err := svc.Update(ctx, h.ID, hook.Input{
		Settings: &hook.Settings{Username: "svc2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Settings.Username != "svc2" {
		t.Fatalf("username = %q", updated.Settings.Username)
	}
	if updated.Settings.Password != "secret" {
		t.Fatalf("password = %q, want the stored one preserved", updated.Settings.Password)
	}
}

func TestUpdateReplacesPasswordWhenProvided(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()

	in := validInput()
	in.AuthMode = hook.AuthBasic
	in.Settings = &hook.Settings{Username: "svc", Password: "secret"}
	h, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.Update(ctx, h.ID, hook.Input{
		Settings: &hook.Settings{Username: "svc", Password: "rotated"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Settings.Password != "rotated" {
		t.Fatalf("password = %q, want rotated", updated.Settings.Password)
	}
}

func TestUpdateClearsTemplate(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()

	in := validInput()
	in.PayloadTemplate = strPtr(`{"fields":%SUBMISSION%}`)
	h, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}

	// Omitted template is left as-is.
	updated, err := svc.Update(ctx, h.ID, hook.Input{Name: "renamed"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.PayloadTemplate == "" {
		t.Fatal("omitted template was cleared")
	}

	// A pointer to the empty string clears it.
	updated, err = svc.Update(ctx, h.ID, hook.Input{PayloadTemplate: strPtr("")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.PayloadTemplate != "" {
		t.Fatalf("template = %q, want cleared", updated.PayloadTemplate)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc := newService(t, false)

	h, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(context.Background(), h.ID); err != nil {
		t.Fatal(err)
	}

	_, err = svc.Update(context.Background(), h.ID, hook.Input{Name: "x"})
	if !errors.Is(err, courier.ErrHookNotFound) {
		t.Fatalf("expected ErrHookNotFound, got %v", err)
	}
}

func TestListFiltersByProject(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatal(err)
	}
	other := validInput()
	other.ProjectID = "proj_2"
	if _, err := svc.Create(ctx, other); err != nil {
		t.Fatal(err)
	}

	hooks, err := svc.List(ctx, "proj_1", hook.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hooks) != 1 || hooks[0].ProjectID != "proj_1" {
		t.Fatalf("got %d hooks", len(hooks))
	}
}
