package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/blob"
	"groupchat-service/internal/models"
	"groupchat-service/internal/telemetry"
)

type chatService interface {
	ResolveDirectChat(ctx context.Context, userA, userB string) (models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	GetChat(ctx context.Context, chatID, callerID string) (models.Chat, error)
	ListMembers(ctx context.Context, chatID, callerID string) ([]models.Member, error)
	ClearChat(ctx context.Context, chatID, callerID string) (models.Chat, error)
	CreateGroup(ctx context.Context, ownerID, name string) (models.Chat, error)
	JoinGroup(ctx context.Context, code, userID string) (models.Chat, error)
	RenameGroup(ctx context.Context, chatID, callerID, name string) (models.Chat, error)
	RemoveMember(ctx context.Context, chatID, callerID, targetID string) (models.Chat, error)
	LeaveGroup(ctx context.Context, chatID, userID string) error
	DeleteGroup(ctx context.Context, chatID, callerID string) error
}

type messageService interface {
	Send(ctx context.Context, chatID, senderID string, payload models.Payload) (models.Message, error)
	History(ctx context.Context, chatID, callerID string, beforeSeq int64, limit int) ([]models.Message, error)
	PresignAttachment(ctx context.Context, chatID, callerID, fileName, mime string) (blob.Upload, error)
}

// ChatHandler serves chat-level endpoints shared by groups and direct chats.
type ChatHandler struct {
	chats    chatService
	messages messageService
	audit    *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats chatService, messages messageService, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages, audit: audit}
}

// StartDirect handles POST /chats/direct.
func (h *ChatHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chats.ResolveDirectChat(c.Request.Context(), c.GetString("userID"), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "chat": chat})
}

// ListChats returns the chats visible to the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChat handles GET /chats/:chat_id.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, err := h.chats.GetChat(c.Request.Context(), c.Param("chat_id"), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// ListMembers handles GET /chats/:chat_id/members.
func (h *ChatHandler) ListMembers(c *gin.Context) {
	members, err := h.chats.ListMembers(c.Request.Context(), c.Param("chat_id"), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// ClearChat handles POST /chats/:chat_id/clear.
func (h *ChatHandler) ClearChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	chat, err := h.chats.ClearChat(c.Request.Context(), chatID, c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(h.audit, c, "INFO", "Chat cleared", chatID)
	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "cleared_at": chat.ClearedAt})
}

// GetMessages returns a page of visible messages, oldest first.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	before, err := queryInt64(c, "before")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before"})
		return
	}
	limit, err := queryInt64(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	msgs, err := h.messages.History(c.Request.Context(), c.Param("chat_id"), c.GetString("userID"), before, int(limit))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage handles POST /chats/:chat_id/messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var payload models.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.Kind == "" {
		payload.Kind = models.KindText
	}

	msg, err := h.messages.Send(c.Request.Context(), c.Param("chat_id"), c.GetString("userID"), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// PresignAttachment handles POST /chats/:chat_id/attachments.
func (h *ChatHandler) PresignAttachment(c *gin.Context) {
	var req struct {
		FileName string `json:"file_name" binding:"required"`
		Mime     string `json:"mime"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upload, err := h.messages.PresignAttachment(c.Request.Context(), c.Param("chat_id"), c.GetString("userID"), req.FileName, req.Mime)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

func queryInt64(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
