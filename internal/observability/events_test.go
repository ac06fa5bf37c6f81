package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type recordingPublisher struct {
	keys   []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any) error {
	p.keys = append(p.keys, routingKey)
	p.events = append(p.events, event)
	return p.err
}

func TestNewEventEnvelopeCarriesRequestAndTrace(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	ctx = WithRequestID(ctx, "req-1")

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	envelope := NewEventEnvelope(ctx, "chat-service", "chat", "group_created", map[string]string{"chat_id": "c1"}, at)

	assert.Equal(t, "req-1", envelope.RequestID)
	assert.Equal(t, traceID.String(), envelope.TraceID)
	assert.Equal(t, "chat.group_created", envelope.RoutingKey())
	assert.Equal(t, "2024-05-01T10:00:00Z", envelope.OccurredAt)
}

func TestPublishEvent(t *testing.T) {
	t.Cleanup(func() { SetPublisher(nil, "") })

	assert.NoError(t, PublishEvent(context.Background(), "chat", "ignored", nil))

	pub := &recordingPublisher{}
	SetPublisher(pub, "svc")
	require.NoError(t, PublishEvent(context.Background(), "chat", "member_joined", map[string]string{"chat_id": "c1"}))
	require.Len(t, pub.keys, 1)
	assert.Equal(t, "chat.member_joined", pub.keys[0])
	envelope, ok := pub.events[0].(EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, "svc", envelope.Service)

	pub.err = errors.New("broker down")
	assert.Error(t, PublishEvent(context.Background(), "chat", "member_left", nil))
}
