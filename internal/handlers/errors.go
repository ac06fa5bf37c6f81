package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/apperr"
)

// respondError writes the status for err's kind. Unclassified errors are
// logged by the request logger and hidden from the client.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
