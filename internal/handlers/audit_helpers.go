package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupchat-service/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID := c.GetString("userID"); userID != "" {
		return &userID
	}
	return nil
}

func emitAudit(audit *telemetry.AuditEmitter, c *gin.Context, level, text, chatID string) {
	if audit == nil {
		return
	}
	audit.Emit(c.Request.Context(), telemetry.AuditRecord{
		Level:     level,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
		ChatID:    chatID,
	})
}
