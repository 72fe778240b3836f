package observability

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/datafield/courier"

// Tracer provides OpenTelemetry tracing for Courier.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Courier tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartSendSpan starts a new span for a delivery attempt.
func (t *Tracer) StartSendSpan(ctx context.Context, logID, hookID string, submissionID int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "courier.send",
		trace.WithAttributes(
			attribute.String("courier.log_id", logID),
			attribute.String("courier.hook_id", hookID),
			attribute.String("courier.submission_id", strconv.FormatInt(submissionID, 10)),
		),
	)
}

// EndSendSpan ends a delivery span with result attributes.
func (t *Tracer) EndSendSpan(span trace.Span, statusCode int, state, message string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.String("courier.state", state),
	)
	if message != "" {
		span.SetAttributes(attribute.String("courier.message", message))
	}
	span.End()
}
