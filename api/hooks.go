package api

import (
	"errors"
	"net/http"

	courier "github.com/datafield/courier"
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/id"
)

type hookRequest struct {
	Name              string           `json:"name"`
	Endpoint          string           `json:"endpoint"`
	Active            *bool            `json:"active,omitempty"`
	AuthMode          hook.AuthMode    `json:"auth_mode,omitempty"`
	Format            hook.Format      `json:"export_type,omitempty"`
	SubsetFields      []string         `json:"subset_fields,omitempty"`
	PayloadTemplate   *string          `json:"payload_template,omitempty"`
	EmailNotification *bool            `json:"email_notification,omitempty"`
	Settings          *settingsRequest `json:"settings,omitempty"`
}

// settingsRequest is the inbound settings shape. Unlike hook.Settings it
// accepts a password; responses use the domain type, which redacts it.
type settingsRequest struct {
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`
	Username      string            `json:"username,omitempty"`
	Password      string            `json:"password,omitempty"`
}

func (req *hookRequest) input(projectID string) hook.Input {
	in := hook.Input{
		ProjectID:         projectID,
		Name:              req.Name,
		Endpoint:          req.Endpoint,
		Active:            req.Active,
		AuthMode:          req.AuthMode,
		Format:            req.Format,
		SubsetFields:      req.SubsetFields,
		PayloadTemplate:   req.PayloadTemplate,
		EmailNotification: req.EmailNotification,
	}
	if req.Settings != nil {
		in.Settings = &hook.Settings{
			CustomHeaders: req.Settings.CustomHeaders,
			Username:      req.Settings.Username,
			Password:      req.Settings.Password,
		}
	}
	return in
}

func (h *Handler) createHook(w http.ResponseWriter, r *http.Request) {
	var req hookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.hookSvc.Create(r.Context(), req.input(r.PathValue("project")))
	if err != nil {
		var verr *hook.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listHooks(w http.ResponseWriter, r *http.Request) {
	opts := hook.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	switch queryParam(r, "active") {
	case "true":
		active := true
		opts.Active = &active
	case "false":
		active := false
		opts.Active = &active
	}

	hooks, err := h.hookSvc.List(r.Context(), r.PathValue("project"), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, hooks)
}

func (h *Handler) getHook(w http.ResponseWriter, r *http.Request) {
	found, ok := h.resolveHook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *Handler) updateHook(w http.ResponseWriter, r *http.Request) {
	found, ok := h.resolveHook(w, r)
	if !ok {
		return
	}

	var req hookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.hookSvc.Update(r.Context(), found.ID, req.input(found.ProjectID))
	if err != nil {
		var verr *hook.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		if errors.Is(err, courier.ErrHookNotFound) {
			writeError(w, http.StatusNotFound, "hook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteHook(w http.ResponseWriter, r *http.Request) {
	found, ok := h.resolveHook(w, r)
	if !ok {
		return
	}

	if err := h.hookSvc.Delete(r.Context(), found.ID); err != nil {
		if errors.Is(err, courier.ErrHookNotFound) {
			writeError(w, http.StatusNotFound, "hook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	found, ok := h.resolveHook(w, r)
	if !ok {
		return
	}

	counts, err := h.stats.Counts(r.Context(), found.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"counts": counts,
		"total":  counts.Total(),
	})
}

// resolveHook loads the hook from the path and enforces project ownership.
// A hook belonging to another project reads as not found.
func (h *Handler) resolveHook(w http.ResponseWriter, r *http.Request) (*hook.Hook, bool) {
	hookID, err := id.ParseHookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hook ID")
		return nil, false
	}

	found, getErr := h.hookSvc.Get(r.Context(), hookID)
	if getErr != nil {
		if errors.Is(getErr, courier.ErrHookNotFound) {
			writeError(w, http.StatusNotFound, "hook not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return nil, false
	}

	if found.ProjectID != r.PathValue("project") {
		writeError(w, http.StatusNotFound, "hook not found")
		return nil, false
	}
	return found, true
}
