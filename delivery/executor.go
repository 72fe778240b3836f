package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"

	"github.com/datafield/courier/egress"
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
	"github.com/datafield/courier/observability"
	"github.com/datafield/courier/payload"
	"github.com/datafield/courier/submission"
)

// ErrRemoteServerDown is the distinguished transient-failure signal. It is
// the only error the retry machinery reacts to: a log recorded as pending
// with a future due time accompanies it. Every other error is terminal for
// the attempt.
var ErrRemoteServerDown = errors.New("delivery: remote server down")

const (
	// maxResponseBody caps how much of the endpoint's response is stored.
	maxResponseBody = hooklog.MaxMessageLen

	// processingMessage is the fixed claim-marker message.
	processingMessage = "delivery in progress"
)

// LogStore is the executor's persistence contract: every log mutation goes
// through the guarded transition.
type LogStore interface {
	Apply(ctx context.Context, t hooklog.Transition) (*hooklog.Log, error)
}

// StatsInvalidator drops cached per-hook delivery counters after a log write.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, hookID id.ID)
}

// Snapshot is the configuration the executor reads for one work unit. It is
// refreshed on every invocation so runtime configuration changes take
// effect without restarts.
type Snapshot struct {
	MaxRetries        int
	RequestTimeout    time.Duration
	RetriableStatuses []int
	Backoff           Backoff
	UserAgent         string
}

// ExecutorConfig holds executor collaborators and configuration.
type ExecutorConfig struct {
	// Config supplies the per-invocation configuration snapshot.
	Config func() Snapshot

	// Notifier is told about permanent failures on flagged hooks.
	Notifier Notifier

	// Stats invalidates cached counters on every log write. Optional.
	Stats StatsInvalidator

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Executor performs the outbound call for one (hook, submission) pair and
// records the resulting state transition.
type Executor struct {
	logs        LogStore
	submissions submission.Store
	guard       *egress.Guard
	cfg         ExecutorConfig
	client      *http.Client
	logger      *slog.Logger

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
}

// NewExecutor creates a delivery executor.
func NewExecutor(logs LogStore, submissions submission.Store, guard *egress.Guard, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Config == nil {
		panic("delivery: ExecutorConfig.Config is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	return &Executor{
		logs:        logs,
		submissions: submissions,
		guard:       guard,
		cfg:         cfg,
		client:      &http.Client{},
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
		logger:      logger,
	}
}

// outcome is what the final record pass writes to the log.
type outcome struct {
	state     hooklog.State
	status    int
	message   string
	latencyMs int
}

// Send delivers one submission to one hook.
//
// The protocol, in order: skip inactive hooks with no state change; load
// the submission (missing is a permanent, normal failure); claim the log
// with the processing marker; build the payload; validate egress; POST;
// classify the response. A single deferred record pass writes the final
// state, status, and sanitized message in every path, including the ones
// where the network call itself failed, so "we don't know if it was sent"
// is still recorded with the best available information.
//
// Returns true only for a 2xx response. ErrRemoteServerDown is returned
// for transient failures after the log is re-queued as pending.
func (e *Executor) Send(ctx context.Context, h *hook.Hook, l *hooklog.Log) (bool, error) {
	// Inactive hooks never deliver. A pending log on a deactivated hook is
	// left alone so it can resume if the hook is reactivated.
	if !h.Active {
		e.logger.DebugContext(ctx, "hook inactive, skipping delivery",
			"hook_id", h.ID, "log_id", l.ID)
		return false, nil
	}

	cfg := e.cfg.Config()

	var span trace.Span
	if e.cfg.Tracer != nil {
		ctx, span = e.cfg.Tracer.StartSendSpan(ctx, l.ID.String(), h.ID.String(), l.SubmissionID)
	}

	content, err := e.submissions.Get(ctx, l.SubmissionID, h.ProjectID, h.Format)
	if err != nil {
		// A vanished submission is a terminal outcome, not a crash.
		out := outcome{
			state:   hooklog.StateFailed,
			status:  hooklog.StatusNoResponse,
			message: fmt.Sprintf("submission %d could not be loaded from the submission store", l.SubmissionID),
		}
		e.record(ctx, h, l, out, cfg)
		e.endSpan(span, out, err)
		return false, nil
	}

	// Claim marker: distinguishes "worker started" from the dispatch-time
	// pending state. Idempotent; does not touch the try counter.
	if _, err := e.logs.Apply(ctx, hooklog.Transition{
		LogID:      l.ID,
		From:       []hooklog.State{hooklog.StatePending, hooklog.StateProcessing},
		State:      hooklog.StateProcessing,
		StatusCode: http.StatusProcessing,
		Message:    processingMessage,
	}); err != nil {
		e.endSpan(span, outcome{}, err)
		if errors.Is(err, hooklog.ErrTransitionRejected) {
			// The row reached a terminal state concurrently.
			return false, nil
		}
		return false, fmt.Errorf("delivery: mark processing: %w", err)
	}
	e.invalidate(ctx, h.ID)

	out := outcome{state: hooklog.StateFailed, status: hooklog.StatusNoResponse}
	defer func() {
		e.record(ctx, h, l, out, cfg)
		e.endSpan(span, out, nil)
	}()

	body, contentType, err := payload.ForFormat(h.Format).Build(content, h)
	if err != nil {
		out.message = err.Error()
		return false, err
	}

	// Egress policy check runs before any network traffic. Rejections are
	// terminal and never retried.
	if err := e.guard.Validate(ctx, h.Endpoint); err != nil {
		out.message = err.Error()
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		out.message = err.Error()
		return false, fmt.Errorf("delivery: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", cfg.UserAgent)
	for k, v := range h.Settings.CustomHeaders {
		req.Header.Set(k, v)
	}
	if h.AuthMode == hook.AuthBasic {
		req.SetBasicAuth(h.Settings.Username, h.Settings.Password)
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := e.do(h, req.WithContext(reqCtx))
	out.latencyMs = int(time.Since(start).Milliseconds())

	if err != nil {
		return false, e.classifyTransportError(&out, cfg, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	out.status = resp.StatusCode
	out.message = string(respBody)
	if readErr != nil {
		out.message = fmt.Sprintf("read response: %v", readErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		out.state = hooklog.StateSuccess
		return true, nil

	case retriable(resp.StatusCode, cfg.RetriableStatuses):
		out.state = hooklog.StatePending
		return false, fmt.Errorf("%w: endpoint returned %d", ErrRemoteServerDown, resp.StatusCode)

	default:
		out.state = hooklog.StateFailed
		return false, fmt.Errorf("delivery: endpoint returned %d", resp.StatusCode)
	}
}

// classifyTransportError maps a failed network call onto the state machine:
// timeouts count as a gateway-timeout-equivalent and circuit-breaker
// rejections as service-unavailable; when the mapped status is in the
// retriable set the log goes back to pending with the distinguished error,
// otherwise the attempt fails permanently.
func (e *Executor) classifyTransportError(out *outcome, cfg Snapshot, err error) error {
	status := hooklog.StatusNoResponse
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout(), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = http.StatusServiceUnavailable
	}

	out.status = status
	out.message = err.Error()

	if retriable(status, cfg.RetriableStatuses) {
		out.state = hooklog.StatePending
		return fmt.Errorf("%w: %v", ErrRemoteServerDown, err)
	}

	out.state = hooklog.StateFailed
	return fmt.Errorf("delivery: request failed: %w", err)
}

// record writes the outcome through the guarded transition, applies the
// try-count cap, schedules the next attempt for pending outcomes, and
// fires counters-cache invalidation and failure notification.
func (e *Executor) record(ctx context.Context, h *hook.Hook, l *hooklog.Log, out outcome, cfg Snapshot) {
	t := hooklog.Transition{
		LogID:          l.ID,
		From:           []hooklog.State{hooklog.StatePending, hooklog.StateProcessing},
		State:          out.state,
		StatusCode:     out.status,
		Message:        hooklog.SanitizeMessage(out.message),
		IncrementTries: true,
	}

	if t.State == hooklog.StatePending {
		// The first attempt is not a retry, hence the +1 on the cap.
		if l.Tries+1 > cfg.MaxRetries+1 {
			t.State = hooklog.StateFailed
			t.Message = "maximum retries exceeded, delivery marked as failed"
		} else {
			next := cfg.Backoff.NextAttempt(l.Tries + 1)
			t.NextAttemptAt = &next
		}
	}

	updated, err := e.logs.Apply(ctx, t)
	if err != nil {
		// The row will be repaired by a recovery sweep.
		e.logger.ErrorContext(ctx, "record delivery outcome failed",
			"log_id", l.ID, "state", t.State, "error", err)
		return
	}
	e.invalidate(ctx, h.ID)

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordDelivery(string(t.State), float64(out.latencyMs)/1000.0)
	}

	switch t.State {
	case hooklog.StateSuccess:
		e.logger.DebugContext(ctx, "delivered",
			"log_id", l.ID, "hook_id", h.ID, "status", out.status, "latency_ms", out.latencyMs)
	case hooklog.StatePending:
		e.logger.DebugContext(ctx, "retry scheduled",
			"log_id", l.ID, "hook_id", h.ID, "status", out.status, "tries", updated.Tries,
			"next_at", updated.NextAttemptAt)
	case hooklog.StateFailed:
		e.logger.WarnContext(ctx, "delivery failed",
			"log_id", l.ID, "hook_id", h.ID, "status", out.status, "tries", updated.Tries)
		if h.EmailNotification {
			e.cfg.Notifier.NotifyFailure(ctx, h, updated)
		}
	}
}

func (e *Executor) invalidate(ctx context.Context, hookID id.ID) {
	if e.cfg.Stats != nil {
		e.cfg.Stats.Invalidate(ctx, hookID)
	}
}

func (e *Executor) endSpan(span trace.Span, out outcome, err error) {
	if e.cfg.Tracer == nil || span == nil {
		return
	}
	msg := out.message
	if err != nil {
		msg = err.Error()
	}
	e.cfg.Tracer.EndSendSpan(span, out.status, string(out.state), msg)
}

// do performs the HTTP call through the hook's circuit breaker. Only
// transport-level errors trip the breaker; HTTP error statuses are handled
// by the state machine.
func (e *Executor) do(h *hook.Hook, req *http.Request) (*http.Response, error) {
	cb := e.breaker(h.ID.String())
	v, err := cb.Execute(func() (any, error) {
		return e.client.Do(req) //nolint:bodyclose // closed by the caller
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}

func (e *Executor) breaker(name string) *gobreaker.CircuitBreaker {
	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()
	cb, ok := e.breakers[name]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: name})
		e.breakers[name] = cb
	}
	return cb
}
