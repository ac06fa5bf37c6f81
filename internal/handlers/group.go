package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/telemetry"
)

// GroupHandler manages group lifecycle and membership endpoints.
type GroupHandler struct {
	chats chatService
	audit *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(chats chatService, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{chats: chats, audit: audit}
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(h.audit, c, "ERROR", "invalid request payload", "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.chats.CreateGroup(c.Request.Context(), c.GetString("userID"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(h.audit, c, "INFO", "Group created", group.ID)
	c.JSON(http.StatusCreated, gin.H{"chat_id": group.ID, "join_code": group.JoinCode})
}

// JoinGroup handles POST /groups/join.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.chats.JoinGroup(c.Request.Context(), req.Code, c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": group.ID, "chat": group})
}

// RenameGroup handles PATCH /groups/:chat_id.
func (h *GroupHandler) RenameGroup(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.chats.RenameGroup(c.Request.Context(), c.Param("chat_id"), c.GetString("userID"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// DeleteGroup handles DELETE /groups/:chat_id.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	chatID := c.Param("chat_id")
	if err := h.chats.DeleteGroup(c.Request.Context(), chatID, c.GetString("userID")); err != nil {
		respondError(c, err)
		return
	}
	emitAudit(h.audit, c, "INFO", "Group deleted", chatID)
	c.Status(http.StatusNoContent)
}

// RemoveMember handles DELETE /groups/:chat_id/members/:user_id.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	chatID := c.Param("chat_id")
	group, err := h.chats.RemoveMember(c.Request.Context(), chatID, c.GetString("userID"), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(h.audit, c, "INFO", "Group member removed", chatID)
	c.JSON(http.StatusOK, gin.H{"chat_id": group.ID, "members": group.Members})
}

// LeaveGroup handles POST /groups/:chat_id/leave.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	if err := h.chats.LeaveGroup(c.Request.Context(), c.Param("chat_id"), c.GetString("userID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
