package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupchat-service/internal/observability"
)

// RequestID makes sure every request carries an X-Request-Id and exposes it
// to handlers and to the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := observability.RequestIDFromRequest(c.Request)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(observability.HeaderRequestID, requestID)
		}
		c.Set("request_id", requestID)
		c.Header(observability.HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
