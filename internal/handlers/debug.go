package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(emitter, c, "INFO", "audit test", "")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
