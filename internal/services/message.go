package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/blob"
	"groupchat-service/internal/broker"
	"groupchat-service/internal/models"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/repositories"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// AttachmentSigner issues upload URLs for file messages.
type AttachmentSigner interface {
	PresignUpload(ctx context.Context, chatID, fileName, mime string) (blob.Upload, error)
}

// MessageService appends messages and streams them to subscribers.
type MessageService struct {
	chats     repositories.ChatRepository
	messages  repositories.MessageRepository
	directory *DirectoryService
	broker    broker.Broker
	signer    AttachmentSigner
	buffer    int
	retry     RetryPolicy
	clock     Clock
	logger    zerolog.Logger
}

// NewMessageService wires the message store. signer may be nil when uploads
// are not configured; buffer bounds each subscription's outgoing channel.
func NewMessageService(chats repositories.ChatRepository, messages repositories.MessageRepository, directory *DirectoryService, b broker.Broker, signer AttachmentSigner, buffer int, retry RetryPolicy, clock Clock, logger zerolog.Logger) *MessageService {
	if buffer <= 0 {
		buffer = 1
	}
	return &MessageService{
		chats:     chats,
		messages:  messages,
		directory: directory,
		broker:    b,
		signer:    signer,
		buffer:    buffer,
		retry:     retry,
		clock:     clock,
		logger:    logger.With().Str("component", "messages").Logger(),
	}
}

// Send appends payload to the chat on behalf of senderID and publishes it.
func (s *MessageService) Send(ctx context.Context, chatID, senderID string, payload models.Payload) (models.Message, error) {
	if problem := payload.Validate(); problem != "" {
		return models.Message{}, apperr.Validation("%s", problem)
	}
	if _, err := s.memberChat(ctx, chatID, senderID); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: s.directory.DisplayName(ctx, senderID),
		Kind:       payload.Kind,
		Text:       strings.TrimSpace(payload.Text),
		File:       payload.File,
	}

	var stored models.Message
	err := s.retry.do(ctx, "append_message", func() error {
		var err error
		stored, err = s.messages.Append(ctx, msg, s.clock())
		return err
	})
	if errors.Is(err, repositories.ErrChatNotFound) {
		return models.Message{}, apperr.NotFound("chat %s not found", chatID)
	}
	if err != nil {
		return models.Message{}, err
	}

	observability.IncMessageSent(string(stored.Kind))
	event := models.ChatEvent{Type: models.EventMessageCreated, ChatID: chatID, Message: &stored}
	if err := s.broker.Publish(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Int64("seq", stored.Seq).Msg("failed to publish message")
	}
	if err := observability.PublishEvent(ctx, "chat", "message_sent", map[string]any{
		"chat_id":   chatID,
		"sender_id": senderID,
		"seq":       stored.Seq,
		"kind":      stored.Kind,
	}); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", chatID).Msg("domain event not published")
	}
	return stored, nil
}

// History returns up to limit visible messages older than beforeSeq, oldest first.
func (s *MessageService) History(ctx context.Context, chatID, callerID string, beforeSeq int64, limit int) ([]models.Message, error) {
	if beforeSeq < 0 {
		return nil, apperr.Validation("before must not be negative")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	chat, err := s.memberChat(ctx, chatID, callerID)
	if err != nil {
		return nil, err
	}
	return s.messages.History(ctx, chatID, chat.ClearedAt, beforeSeq, limit)
}

// PresignAttachment returns an upload URL for a file the caller will send to the chat.
func (s *MessageService) PresignAttachment(ctx context.Context, chatID, callerID, fileName, mime string) (blob.Upload, error) {
	if s.signer == nil {
		return blob.Upload{}, apperr.InvalidOperation("%s", blob.ErrDisabled.Error())
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return blob.Upload{}, apperr.Validation("file name is required")
	}
	if _, err := s.memberChat(ctx, chatID, callerID); err != nil {
		return blob.Upload{}, err
	}
	return s.signer.PresignUpload(ctx, chatID, fileName, mime)
}

// Subscribe streams the chat's visible messages to callerID: first the
// backlog after the clear cursor, then live messages as they are appended.
// Every message is delivered once, in seq order. The subscription ends when
// ctx is cancelled, the chat is deleted or the consumer falls behind.
func (s *MessageService) Subscribe(ctx context.Context, chatID, callerID string) (*Subscription, error) {
	sub := s.broker.Subscribe(chatID)

	chat, err := s.memberChat(ctx, chatID, callerID)
	if err != nil {
		s.broker.Unsubscribe(sub)
		return nil, err
	}
	backlog, err := s.messages.ListAfterSeq(ctx, chatID, chat.ClearedAt, 0)
	if err != nil {
		s.broker.Unsubscribe(sub)
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	out := &Subscription{
		ChatID:    chatID,
		userID:    callerID,
		clearedAt: chat.ClearedAt,
		headSeq:   chat.LastSeq,
		messages:  make(chan models.Message, s.buffer),
		cancel:    cancel,
	}
	observability.IncSubscriptions()
	go s.stream(ctx, out, sub, backlog)
	return out, nil
}

func (s *MessageService) stream(ctx context.Context, out *Subscription, sub *broker.Subscriber, backlog []models.Message) {
	err := s.pump(ctx, out, sub, backlog)
	s.broker.Unsubscribe(sub)
	out.finish(err)
	observability.DecSubscriptions(terminationReason(err))
	s.logger.Debug().Err(err).Str("chat_id", out.ChatID).Int64("last_seq", out.last).Msg("subscription ended")
}

func (s *MessageService) pump(ctx context.Context, out *Subscription, sub *broker.Subscriber, backlog []models.Message) error {
	for _, msg := range backlog {
		if err := out.deliver(ctx, msg); err != nil {
			return err
		}
	}
	// Every visible message up to the head read at subscribe time was in the backlog.
	if out.last < out.headSeq {
		out.last = out.headSeq
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-sub.Events():
			if err := s.handle(ctx, out, event); err != nil {
				return err
			}
		case <-sub.Done():
			if errors.Is(sub.Err(), broker.ErrSlowConsumer) {
				return broker.ErrSlowConsumer
			}
			for {
				select {
				case event := <-sub.Events():
					if err := s.handle(ctx, out, event); err != nil {
						return err
					}
				default:
					return sub.Err()
				}
			}
		}
	}
}

func (s *MessageService) handle(ctx context.Context, out *Subscription, event models.ChatEvent) error {
	if event.Type == models.EventMemberRemoved && event.UserID == out.userID {
		return broker.ErrRemoved
	}
	if event.Type != models.EventMessageCreated || event.Message == nil {
		return nil
	}
	msg := *event.Message
	if msg.Seq <= out.last {
		return nil
	}
	if msg.Seq > out.last+1 {
		// A gap means events were lost, possibly including a removal.
		member, err := s.chats.IsMember(ctx, out.ChatID, out.userID)
		if err != nil {
			return err
		}
		if !member {
			return broker.ErrRemoved
		}
		missed, err := s.messages.ListAfterSeq(ctx, out.ChatID, out.clearedAt, out.last)
		if err != nil {
			return err
		}
		for _, m := range missed {
			if err := out.deliver(ctx, m); err != nil {
				return err
			}
		}
		if msg.Seq <= out.last {
			return nil
		}
	}
	return out.deliver(ctx, msg)
}

func (s *MessageService) memberChat(ctx context.Context, chatID, userID string) (models.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return models.Chat{}, apperr.NotFound("chat %s not found", chatID)
	}
	if err != nil {
		return models.Chat{}, err
	}
	if !chat.HasMember(userID) {
		return models.Chat{}, apperr.Permission("user %s is not a member of chat %s", userID, chatID)
	}
	return chat, nil
}

// Subscription is a live, ordered feed of one chat's messages.
type Subscription struct {
	ChatID string

	userID    string
	clearedAt time.Time
	headSeq   int64
	last      int64
	messages  chan models.Message
	cancel    context.CancelFunc

	mu  sync.Mutex
	err error
}

// Messages yields messages in seq order. It is closed when the subscription ends.
func (s *Subscription) Messages() <-chan models.Message { return s.messages }

// Err reports why the subscription ended once Messages is closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription.
func (s *Subscription) Close() { s.cancel() }

func (s *Subscription) deliver(ctx context.Context, msg models.Message) error {
	if msg.Seq <= s.last || !msg.CreatedAt.After(s.clearedAt) {
		return nil
	}
	select {
	case s.messages <- msg:
		s.last = msg.Seq
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.cancel()
	close(s.messages)
}

func terminationReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, broker.ErrChatDeleted):
		return "chat_deleted"
	case errors.Is(err, broker.ErrRemoved):
		return "removed"
	case errors.Is(err, broker.ErrSlowConsumer):
		return "slow_consumer"
	case errors.Is(err, broker.ErrClosed):
		return "closed"
	default:
		return "error"
	}
}

func zeroTime() time.Time {
	return time.Unix(0, 0).UTC()
}
