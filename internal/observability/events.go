package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

// EventEnvelope wraps a domain event published to the bus.
type EventEnvelope struct {
	EventType  string `json:"event_type"`
	EventName  string `json:"event_name"`
	Service    string `json:"service"`
	OccurredAt string `json:"occurred_at"`
	RequestID  string `json:"request_id,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
	Payload    any    `json:"payload"`
}

// NewEventEnvelope stamps payload with the request and trace ids found in ctx.
func NewEventEnvelope(ctx context.Context, service, source, name string, payload any, at time.Time) EventEnvelope {
	envelope := EventEnvelope{
		EventType:  source,
		EventName:  name,
		Service:    service,
		OccurredAt: at.UTC().Format(time.RFC3339Nano),
		RequestID:  RequestIDFromContext(ctx),
		Payload:    payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}
	return envelope
}

func (e EventEnvelope) RoutingKey() string {
	return e.EventType + "." + e.EventName
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
