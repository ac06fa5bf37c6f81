package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      zerolog.Logger
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	ChatID        string       `json:"chat_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// AuditRecord is one auditable action taken through the API.
type AuditRecord struct {
	Level     string
	Text      string
	RequestID string
	UserID    *string
	ChatID    string
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger zerolog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger.With().Str("component", "audit").Logger(),
		now:         time.Now,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, record AuditRecord) {
	if e == nil || e.publisher == nil {
		return
	}

	e.logger.Debug().
		Str("level", record.Level).
		Str("request_id", record.RequestID).
		Str("chat_id", record.ChatID).
		Msg(record.Text)

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     record.RequestID,
		UserID:        record.UserID,
		ChatID:        record.ChatID,
		Payload: AuditPayload{
			Level: record.Level,
			Text:  record.Text,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.logger.Error().Err(err).Msg("audit publish failed")
	}
}
