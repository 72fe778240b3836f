// Package api provides the HTTP API for Courier hook management.
//
// All routes are project-scoped under /projects/{project}/hooks.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/stats"
)

// Handler is the root HTTP handler for the Courier API.
type Handler struct {
	hookSvc *hook.Service
	logSvc  *hooklog.Service
	stats   stats.Cache
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewHandler creates a new API handler.
func NewHandler(
	hookSvc *hook.Service,
	logSvc *hooklog.Service,
	statsCache stats.Cache,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		hookSvc: hookSvc,
		logSvc:  logSvc,
		stats:   statsCache,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Hooks
	h.mux.HandleFunc("POST /projects/{project}/hooks", h.createHook)
	h.mux.HandleFunc("GET /projects/{project}/hooks", h.listHooks)
	h.mux.HandleFunc("GET /projects/{project}/hooks/{id}", h.getHook)
	h.mux.HandleFunc("PATCH /projects/{project}/hooks/{id}", h.updateHook)
	h.mux.HandleFunc("DELETE /projects/{project}/hooks/{id}", h.deleteHook)

	// Delivery logs
	h.mux.HandleFunc("GET /projects/{project}/hooks/{id}/logs", h.listLogs)
	h.mux.HandleFunc("GET /projects/{project}/hooks/{id}/logs/{log_id}", h.getLog)
	h.mux.HandleFunc("PATCH /projects/{project}/hooks/{id}/logs/{log_id}/retry", h.retryLog)
	h.mux.HandleFunc("PATCH /projects/{project}/hooks/{id}/retry", h.retryAll)

	// Stats
	h.mux.HandleFunc("GET /projects/{project}/hooks/{id}/stats", h.getStats)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultVal
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// queryTime returns a query parameter as an RFC 3339 timestamp, or nil.
func queryTime(r *http.Request, key string) *time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}
