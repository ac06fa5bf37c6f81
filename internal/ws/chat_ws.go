package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/broker"
	"groupchat-service/internal/models"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/services"
)

const writeTimeout = 10 * time.Second

type subscriber interface {
	Subscribe(ctx context.Context, chatID, callerID string) (*services.Subscription, error)
}

// Event is one frame sent to a websocket client.
type Event struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

const (
	EventMessage    = "message"
	EventTerminated = "terminated"
)

// ChatWebSocketHandler streams a chat subscription over a websocket.
type ChatWebSocketHandler struct {
	messages subscriber
	logger   zerolog.Logger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(messages subscriber, logger zerolog.Logger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{messages: messages, logger: logger.With().Str("component", "ws").Logger()}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle subscribes the caller to the chat and upgrades the connection.
// Authorization failures are reported as plain HTTP errors before the upgrade.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	ctx, span := otel.Tracer("groupchat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	// The stream outlives the handshake request.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := h.messages.Subscribe(streamCtx, chatID, userID)
	if err != nil {
		cancel()
		status := apperr.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("chat_id", chatID).Msg("subscribe failed")
			c.JSON(status, gin.H{"error": "internal error"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		return
	}

	info := newConnInfo(c.Request, userID, chatID, span.SpanContext().TraceID().String())
	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	_ = observability.PublishEvent(streamCtx, "ws_events", "ws_connect", info.eventPayload("ws_connect", ""))

	go h.readLoop(conn, cancel, info)
	go h.writeLoop(streamCtx, conn, sub, cancel, info)
}

// readLoop discards client frames and ends the subscription when the peer goes away.
func (h *ChatWebSocketHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc, info ConnInfo) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
				h.logger.Debug().Err(err).Str("conn_id", info.ConnID).Msg("websocket read failed")
			}
			return
		}
	}
}

func (h *ChatWebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *services.Subscription, cancel context.CancelFunc, info ConnInfo) {
	defer func() {
		cancel()
		conn.Close()
	}()

	for msg := range sub.Messages() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(Event{Type: EventMessage, Message: &msg}); err != nil {
			sub.Close()
			for range sub.Messages() {
			}
			break
		}
	}

	reason := closeReason(sub.Err())
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteJSON(Event{Type: EventTerminated, Reason: reason})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode(sub.Err()), reason), time.Now().Add(time.Second))

	observability.DecWSActive("chat")
	observability.IncWSEvent("chat", "ws_disconnect")
	_ = observability.PublishEvent(context.WithoutCancel(ctx), "ws_events", "ws_disconnect", info.eventPayload("ws_disconnect", reason))
	h.logger.Debug().Str("conn_id", info.ConnID).Str("chat_id", info.ChatID).Str("reason", reason).Msg("websocket closed")
}

func closeReason(err error) string {
	switch {
	case errors.Is(err, broker.ErrChatDeleted):
		return "chat_deleted"
	case errors.Is(err, broker.ErrRemoved):
		return "removed"
	case errors.Is(err, broker.ErrSlowConsumer):
		return "slow_consumer"
	case errors.Is(err, broker.ErrClosed):
		return "server_shutdown"
	case err == nil, errors.Is(err, context.Canceled):
		return "closed"
	default:
		return "error"
	}
}

func closeCode(err error) int {
	switch {
	case errors.Is(err, broker.ErrChatDeleted):
		return websocket.CloseNormalClosure
	case errors.Is(err, broker.ErrRemoved):
		return websocket.ClosePolicyViolation
	case errors.Is(err, broker.ErrSlowConsumer), errors.Is(err, broker.ErrClosed):
		return websocket.CloseTryAgainLater
	case err == nil, errors.Is(err, context.Canceled):
		return websocket.CloseNormalClosure
	default:
		return websocket.CloseInternalServerErr
	}
}
