package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"groupchat-service/internal/observability"
)

// ConnInfo identifies one websocket stream for logs and domain events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	ChatID      string
	TraceID     string
	Client      observability.Client
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, userID, chatID, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		ChatID:      chatID,
		TraceID:     traceID,
		Client:      observability.ClientFromRequest(r),
		ConnectedAt: time.Now(),
	}
}

func (i ConnInfo) eventPayload(event, reason string) map[string]any {
	return map[string]any{
		"chat_id":     i.ChatID,
		"user_id":     i.UserID,
		"conn_id":     i.ConnID,
		"event":       event,
		"reason":      reason,
		"duration_ms": time.Since(i.ConnectedAt).Milliseconds(),
		"client": map[string]any{
			"device_id":  i.Client.DeviceID,
			"ip":         i.Client.IP,
			"user_agent": i.Client.UserAgent,
		},
	}
}
