package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/models"
)

type streakService interface {
	RecordActivity(ctx context.Context, userID string) (models.StreakRecord, error)
	CurrentStreak(ctx context.Context, userID string) (int, error)
}

type StreakHandler struct {
	streaks streakService
}

func NewStreakHandler(streaks streakService) *StreakHandler {
	return &StreakHandler{streaks: streaks}
}

// RecordActivity handles POST /streak/activity.
func (h *StreakHandler) RecordActivity(c *gin.Context) {
	rec, err := h.streaks.RecordActivity(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Get handles GET /streak.
func (h *StreakHandler) Get(c *gin.Context) {
	userID := c.GetString("userID")
	current, err := h.streaks.CurrentStreak(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "current_streak": current})
}
