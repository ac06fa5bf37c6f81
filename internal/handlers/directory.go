package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/models"
)

type directoryService interface {
	Upsert(ctx context.Context, userID, displayName, email string) (models.DirectoryEntry, error)
	Get(ctx context.Context, userID string) (models.DirectoryEntry, error)
	FindByEmail(ctx context.Context, email string) (models.DirectoryEntry, error)
	SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]models.DirectoryEntry, error)
}

// DirectoryHandler exposes the identity directory.
type DirectoryHandler struct {
	directory directoryService
}

func NewDirectoryHandler(directory directoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// UpsertMe handles PUT /directory/me.
func (h *DirectoryHandler) UpsertMe(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.directory.Upsert(c.Request.Context(), c.GetString("userID"), req.DisplayName, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Lookup handles GET /directory with either ?email= or ?prefix=.
func (h *DirectoryHandler) Lookup(c *gin.Context) {
	if email := c.Query("email"); email != "" {
		entry, err := h.directory.FindByEmail(c.Request.Context(), email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": []models.DirectoryEntry{entry}})
		return
	}

	prefix := c.Query("prefix")
	if prefix == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or prefix is required"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	entries, err := h.directory.SearchByNamePrefix(c.Request.Context(), prefix, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Get handles GET /directory/:user_id.
func (h *DirectoryHandler) Get(c *gin.Context) {
	entry, err := h.directory.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
