package api

import (
	"errors"
	"net/http"

	courier "github.com/datafield/courier"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
)

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	found, ok := h.resolveHook(w, r)
	if !ok {
		return
	}

	opts := hooklog.ListOpts{
		Offset:         queryInt(r, "offset", 0),
		Limit:          queryInt(r, "limit", 50),
		ModifiedAfter:  queryTime(r, "start"),
		ModifiedBefore: queryTime(r, "end"),
	}
	if v := queryParam(r, "status"); v != "" {
		state := hooklog.State(v)
		if !state.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		opts.State = &state
	}

	logs, err := h.logSvc.List(r.Context(), found.ID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	l, ok := h.resolveLog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) retryLog(w http.ResponseWriter, r *http.Request) {
	l, ok := h.resolveLog(w, r)
	if !ok {
		return
	}

	updated, err := h.logSvc.Retry(r.Context(), l.ID)
	if err != nil {
		if errors.Is(err, hooklog.ErrNotRetriable) {
			writeError(w, http.StatusBadRequest, "log is not eligible for retry")
			return
		}
		if errors.Is(err, hooklog.ErrTransitionRejected) {
			writeError(w, http.StatusConflict, "log changed concurrently, retry the request")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) retryAll(w http.ResponseWriter, r *http.Request) {
	found, ok := h.resolveHook(w, r)
	if !ok {
		return
	}

	queued, err := h.logSvc.RetryAll(r.Context(), found.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queued": len(queued),
		"ids":    queued,
	})
}

// resolveLog loads the log from the path and checks it belongs to the hook
// in the path, which itself must belong to the project.
func (h *Handler) resolveLog(w http.ResponseWriter, r *http.Request) (*hooklog.Log, bool) {
	found, ok := h.resolveHook(w, r)
	if !ok {
		return nil, false
	}

	logID, err := id.ParseLogID(r.PathValue("log_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid log ID")
		return nil, false
	}

	l, getErr := h.logSvc.Get(r.Context(), logID)
	if getErr != nil {
		if errors.Is(getErr, courier.ErrLogNotFound) {
			writeError(w, http.StatusNotFound, "log not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return nil, false
	}

	if l.HookID != found.ID {
		writeError(w, http.StatusNotFound, "log not found")
		return nil, false
	}
	return l, true
}
