package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/models"
	"groupchat-service/internal/telemetry"
)

type categoryService interface {
	Create(ctx context.Context, ownerID, name string) (models.Category, error)
	Rename(ctx context.Context, ownerID, categoryID, name string) (models.Category, error)
	DeleteAndReassign(ctx context.Context, ownerID, categoryID string) (models.Progress, error)
	UpsertNote(ctx context.Context, ownerID, noteID, title, categoryID string) (models.NoteRef, error)
	GetNote(ctx context.Context, ownerID, noteID string) (models.NoteRef, error)
}

// CategoryHandler serves category and note projection endpoints.
type CategoryHandler struct {
	categories categoryService
	audit      *telemetry.AuditEmitter
}

func NewCategoryHandler(categories categoryService, audit *telemetry.AuditEmitter) *CategoryHandler {
	return &CategoryHandler{categories: categories, audit: audit}
}

// Create handles POST /categories.
func (h *CategoryHandler) Create(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := h.categories.Create(c.Request.Context(), c.GetString("userID"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// Rename handles PATCH /categories/:category_id. Notes pick up the new name
// in the background.
func (h *CategoryHandler) Rename(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := h.categories.Rename(c.Request.Context(), c.GetString("userID"), c.Param("category_id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// Delete handles DELETE /categories/:category_id.
func (h *CategoryHandler) Delete(c *gin.Context) {
	categoryID := c.Param("category_id")
	progress, err := h.categories.DeleteAndReassign(c.Request.Context(), c.GetString("userID"), categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(h.audit, c, "INFO", "Category deleted", "")
	c.JSON(http.StatusOK, gin.H{"category_id": categoryID, "progress": progress})
}

// UpsertNote handles PUT /notes/:note_id.
func (h *CategoryHandler) UpsertNote(c *gin.Context) {
	var req struct {
		Title      string `json:"title"`
		CategoryID string `json:"category_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	note, err := h.categories.UpsertNote(c.Request.Context(), c.GetString("userID"), c.Param("note_id"), req.Title, req.CategoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// GetNote handles GET /notes/:note_id.
func (h *CategoryHandler) GetNote(c *gin.Context) {
	note, err := h.categories.GetNote(c.Request.Context(), c.GetString("userID"), c.Param("note_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}
