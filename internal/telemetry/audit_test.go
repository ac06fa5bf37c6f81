package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *publisherMock) Close() error { return nil }

func TestEmitPublishesEnvelope(t *testing.T) {
	pub := new(publisherMock)
	emitter := NewAuditEmitter(pub, "audit.chat-service", "chat-service", "test", zerolog.Nop())
	emitter.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	userID := "u1"
	pub.On("Publish", mock.Anything, "audit.chat-service", mock.AnythingOfType("telemetry.AuditEnvelope")).
		Run(func(args mock.Arguments) {
			envelope := args.Get(2).(AuditEnvelope)
			assert.Equal(t, "audit_log", envelope.EventType)
			assert.Equal(t, "2024-01-02T03:04:05Z", envelope.OccurredAt)
			assert.Equal(t, "req-1", envelope.RequestID)
			assert.Equal(t, "c1", envelope.ChatID)
			require.NotNil(t, envelope.UserID)
			assert.Equal(t, "u1", *envelope.UserID)
			assert.Equal(t, AuditPayload{Level: "INFO", Text: "Group created"}, envelope.Payload)
		}).
		Return(errors.New("ignored")).Once()

	emitter.Emit(context.Background(), AuditRecord{Level: "INFO", Text: "Group created", RequestID: "req-1", UserID: &userID, ChatID: "c1"})
	pub.AssertExpectations(t)
}

func TestEmitOnNilEmitter(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), AuditRecord{Level: "INFO", Text: "noop"})
	})
}
