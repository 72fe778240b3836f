package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datafield/courier/api"
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/stats"
	"github.com/datafield/courier/store/memory"
)

type fixture struct {
	store  *memory.Store
	server *httptest.Server
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	hookSvc := hook.NewService(s, false, nil)
	logSvc := hooklog.NewService(s, hooklog.RetryPolicy{
		MaxRetries: 3,
		PendingAge: 24 * time.Hour,
	}, nil)
	cache := stats.NewMemoryCache(s, time.Minute)

	srv := httptest.NewServer(api.NewHandler(hookSvc, logSvc, cache, nil))
	t.Cleanup(srv.Close)

	return &fixture{store: s, server: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func (f *fixture) createHook(t *testing.T, project string) *hook.Hook {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/projects/"+project+"/hooks", map[string]any{
		"name":     "api hook",
		"endpoint": "https://example.com/receiver",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create hook: status %d", resp.StatusCode)
	}
	h := decode[*hook.Hook](t, resp)
	return h
}

func (f *fixture) createLog(t *testing.T, h *hook.Hook, submissionID int64) *hooklog.Log {
	t.Helper()
	l := hooklog.New(h.ID, submissionID)
	if _, err := f.store.CreateLogIfAbsent(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	return l
}

func (f *fixture) failLog(t *testing.T, l *hooklog.Log) {
	t.Helper()
	_, err := f.store.Apply(context.Background(), hooklog.Transition{
		LogID:          l.ID,
		From:           []hooklog.State{hooklog.StatePending},
		State:          hooklog.StateFailed,
		StatusCode:     400,
		Message:        "endpoint returned 400",
		IncrementTries: true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateHook(t *testing.T) {
	f := setup(t)

	h := f.createHook(t, "proj_1")
	if h.ProjectID != "proj_1" {
		t.Fatalf("project = %q, want proj_1", h.ProjectID)
	}
	if !h.Active || h.Format != hook.FormatJSON {
		t.Fatalf("defaults not applied: %+v", h)
	}
}

func TestCreateHookValidationError(t *testing.T) {
	f := setup(t)

	resp := f.do(t, http.MethodPost, "/projects/proj_1/hooks", map[string]any{
		"name":     "bad",
		"endpoint": "ftp://example.com",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["error"] == "" {
		t.Fatal("missing error message")
	}
}

func TestCreateHookMalformedBody(t *testing.T) {
	f := setup(t)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/projects/proj_1/hooks",
		bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateBasicAuthHook(t *testing.T) {
	f := setup(t)

	resp := f.do(t, http.MethodPost, "/projects/proj_1/hooks", map[string]any{
		"name":      "crm sync",
		"endpoint":  "https://example.com/receiver",
		"auth_mode": "basic",
		"settings": map[string]any{
			"username": "alice",
			"password": "s3cret",
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("s3cret")) || bytes.Contains(raw, []byte(`"password"`)) {
		t.Fatalf("password leaked in response: %s", raw)
	}

	var created hook.Hook
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatal(err)
	}
	if created.AuthMode != hook.AuthBasic || created.Settings.Username != "alice" {
		t.Fatalf("created = %+v", created)
	}

	// The credentials reached the store even though responses redact them.
	stored, err := f.store.GetHook(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Settings.Password != "s3cret" {
		t.Fatalf("stored password = %q", stored.Settings.Password)
	}
}

func TestUpdateBasicAuthSettingsKeepsPassword(t *testing.T) {
	f := setup(t)

	resp := f.do(t, http.MethodPost, "/projects/proj_1/hooks", map[string]any{
		"name":      "crm sync",
		"endpoint":  "https://example.com/receiver",
		"auth_mode": "basic",
		"settings":  map[string]any{"username": "alice", "password": "s3cret"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[*hook.Hook](t, resp)

	// A settings PATCH without the password must not reject or wipe it.
	resp = f.do(t, http.MethodPatch, fmt.Sprintf("/projects/proj_1/hooks/%s", created.ID),
		map[string]any{"settings": map[string]any{"username": "bob"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}

	stored, err := f.store.GetHook(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Settings.Username != "bob" {
		t.Fatalf("username = %q", stored.Settings.Username)
	}
	if stored.Settings.Password != "s3cret" {
		t.Fatalf("stored password = %q, want preserved", stored.Settings.Password)
	}
}

func TestListHooksFiltersByActive(t *testing.T) {
	f := setup(t)
	h1 := f.createHook(t, "proj_1")
	h2 := f.createHook(t, "proj_1")
	if err := f.store.SetActive(context.Background(), h2.ID, false); err != nil {
		t.Fatal(err)
	}

	resp := f.do(t, http.MethodGet, "/projects/proj_1/hooks?active=true", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	hooks := decode[[]*hook.Hook](t, resp)
	if len(hooks) != 1 || hooks[0].ID != h1.ID {
		t.Fatalf("got %d hooks, want only the active one", len(hooks))
	}
}

func TestGetHookScopedToProject(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")

	resp := f.do(t, http.MethodGet, fmt.Sprintf("/projects/proj_1/hooks/%s", h.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// The same hook through another project's URL reads as not found.
	resp = f.do(t, http.MethodGet, fmt.Sprintf("/projects/proj_2/hooks/%s", h.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-project status = %d, want 404", resp.StatusCode)
	}
}

func TestGetHookInvalidID(t *testing.T) {
	f := setup(t)

	resp := f.do(t, http.MethodGet, "/projects/proj_1/hooks/not-an-id", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateHook(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")

	resp := f.do(t, http.MethodPatch, fmt.Sprintf("/projects/proj_1/hooks/%s", h.ID),
		map[string]any{"name": "renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	updated := decode[*hook.Hook](t, resp)
	if updated.Name != "renamed" {
		t.Fatalf("name = %q", updated.Name)
	}
	if updated.Endpoint != h.Endpoint {
		t.Fatal("unrelated field was reset by partial update")
	}
}

func TestUpdateHookRejectsInvalidMerge(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")

	resp := f.do(t, http.MethodPatch, fmt.Sprintf("/projects/proj_1/hooks/%s", h.ID),
		map[string]any{"auth_mode": "basic"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for basic auth without credentials", resp.StatusCode)
	}
}

func TestDeleteHook(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")

	resp := f.do(t, http.MethodDelete, fmt.Sprintf("/projects/proj_1/hooks/%s", h.ID), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/projects/proj_1/hooks/%s", h.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", resp.StatusCode)
	}
}

func TestListLogs(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")
	l1 := f.createLog(t, h, 1)
	f.createLog(t, h, 2)
	f.failLog(t, l1)

	resp := f.do(t, http.MethodGet, fmt.Sprintf("/projects/proj_1/hooks/%s/logs", h.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	logs := decode[[]*hooklog.Log](t, resp)
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2", len(logs))
	}

	resp = f.do(t, http.MethodGet,
		fmt.Sprintf("/projects/proj_1/hooks/%s/logs?status=failed", h.ID), nil)
	logs = decode[[]*hooklog.Log](t, resp)
	if len(logs) != 1 || logs[0].ID != l1.ID {
		t.Fatalf("got %d failed logs, want 1", len(logs))
	}
}

func TestListLogsRejectsUnknownStatus(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")

	resp := f.do(t, http.MethodGet,
		fmt.Sprintf("/projects/proj_1/hooks/%s/logs?status=bogus", h.ID), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetLogScopedToHook(t *testing.T) {
	f := setup(t)
	h1 := f.createHook(t, "proj_1")
	h2 := f.createHook(t, "proj_1")
	l := f.createLog(t, h1, 1)

	resp := f.do(t, http.MethodGet,
		fmt.Sprintf("/projects/proj_1/hooks/%s/logs/%s", h1.ID, l.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet,
		fmt.Sprintf("/projects/proj_1/hooks/%s/logs/%s", h2.ID, l.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-hook status = %d, want 404", resp.StatusCode)
	}
}

func TestRetryLog(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")
	l := f.createLog(t, h, 1)
	f.failLog(t, l)

	resp := f.do(t, http.MethodPatch,
		fmt.Sprintf("/projects/proj_1/hooks/%s/logs/%s/retry", h.ID, l.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	requeued := decode[*hooklog.Log](t, resp)
	if requeued.State != hooklog.StatePending {
		t.Fatalf("state = %q, want pending", requeued.State)
	}
}

func TestRetryLogNotEligible(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")
	l := f.createLog(t, h, 1)
	if _, err := f.store.Apply(context.Background(), hooklog.Transition{
		LogID:          l.ID,
		From:           []hooklog.State{hooklog.StatePending},
		State:          hooklog.StateSuccess,
		StatusCode:     200,
		IncrementTries: true,
	}); err != nil {
		t.Fatal(err)
	}

	resp := f.do(t, http.MethodPatch,
		fmt.Sprintf("/projects/proj_1/hooks/%s/logs/%s/retry", h.ID, l.ID), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for delivered log", resp.StatusCode)
	}
}

func TestRetryAll(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")
	l1 := f.createLog(t, h, 1)
	l2 := f.createLog(t, h, 2)
	f.createLog(t, h, 3) // stays pending, not eligible
	f.failLog(t, l1)
	f.failLog(t, l2)

	resp := f.do(t, http.MethodPatch,
		fmt.Sprintf("/projects/proj_1/hooks/%s/retry", h.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Queued int      `json:"queued"`
		IDs    []string `json:"ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Queued != 2 || len(body.IDs) != 2 {
		t.Fatalf("queued %d ids %v, want 2 failed logs re-queued", body.Queued, body.IDs)
	}
}

func TestGetStats(t *testing.T) {
	f := setup(t)
	h := f.createHook(t, "proj_1")
	l := f.createLog(t, h, 1)
	f.createLog(t, h, 2)
	f.failLog(t, l)

	resp := f.do(t, http.MethodGet, fmt.Sprintf("/projects/proj_1/hooks/%s/stats", h.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Counts map[string]int64 `json:"counts"`
		Total  int64            `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 2 {
		t.Fatalf("total = %d, want 2", body.Total)
	}
	if body.Counts["failed"] != 1 || body.Counts["pending"] != 1 {
		t.Fatalf("counts = %v", body.Counts)
	}
}
