package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/broker"
	"groupchat-service/internal/joincode"
	"groupchat-service/internal/models"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/repositories"
)

const (
	maxGroupNameLength  = 120
	maxJoinCodeAttempts = 8
)

// ChatService owns group and direct chat lifecycles and membership.
type ChatService struct {
	chats     repositories.ChatRepository
	directory *DirectoryService
	codes     *joincode.Allocator
	broker    broker.Broker
	retry     RetryPolicy
	clock     Clock
	logger    zerolog.Logger
}

func NewChatService(chats repositories.ChatRepository, directory *DirectoryService, b broker.Broker, retry RetryPolicy, clock Clock, logger zerolog.Logger) *ChatService {
	return &ChatService{
		chats:     chats,
		directory: directory,
		codes:     joincode.NewAllocator(chats.JoinCodeExists, 0),
		broker:    b,
		retry:     retry,
		clock:     clock,
		logger:    logger.With().Str("component", "chats").Logger(),
	}
}

// ResolveDirectChat returns the direct chat between userA and userB, creating
// it on first use. Concurrent callers observe the same chat.
func (s *ChatService) ResolveDirectChat(ctx context.Context, userA, userB string) (models.Chat, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return models.Chat{}, apperr.Validation("both participants are required")
	}
	if userA == userB {
		return models.Chat{}, apperr.Validation("cannot open a direct chat with yourself")
	}
	if strings.Contains(userA, models.DirectKeySeparator) || strings.Contains(userB, models.DirectKeySeparator) {
		return models.Chat{}, apperr.Validation("user ids in a direct chat must not contain %q", models.DirectKeySeparator)
	}

	var (
		chat    models.Chat
		created bool
	)
	err := s.retry.do(ctx, "resolve_direct", func() error {
		var err error
		chat, created, err = s.chats.CreateDirect(ctx, userA, userB, s.clock().UTC())
		return err
	})
	if err != nil {
		return models.Chat{}, err
	}
	if !sameMembers(chat.Members, userA, userB) {
		return models.Chat{}, apperr.Conflict("direct chat %s does not belong to %s and %s", chat.ID, userA, userB)
	}
	if created {
		s.logger.Info().Str("chat_id", chat.ID).Msg("direct chat created")
		s.publish(ctx, "direct_chat_created", chat.ID, userA)
	}
	return chat, nil
}

// CreateGroup creates a group owned by ownerID with a fresh join code.
func (s *ChatService) CreateGroup(ctx context.Context, ownerID, name string) (models.Chat, error) {
	name, err := validGroupName(name)
	if err != nil {
		return models.Chat{}, err
	}

	for attempt := 0; attempt < maxJoinCodeAttempts; attempt++ {
		code, err := s.codes.Allocate(ctx)
		if errors.Is(err, joincode.ErrExhausted) {
			return models.Chat{}, apperr.Conflict("could not allocate a unique join code")
		}
		if err != nil {
			return models.Chat{}, err
		}

		epoch := zeroTime()
		chat := models.Chat{
			ID:            uuid.NewString(),
			Name:          name,
			OwnerID:       ownerID,
			JoinCode:      &code,
			CreatedAt:     s.clock().UTC(),
			ClearedAt:     epoch,
			LastMessageAt: epoch,
		}
		err = s.retry.do(ctx, "create_group", func() error {
			return s.chats.CreateGroup(ctx, chat)
		})
		if errors.Is(err, repositories.ErrJoinCodeTaken) {
			s.logger.Debug().Str("join_code", code).Msg("join code collided at commit, reallocating")
			continue
		}
		if err != nil {
			return models.Chat{}, err
		}

		chat.Members = []string{ownerID}
		s.logger.Info().Str("chat_id", chat.ID).Str("owner_id", ownerID).Msg("group created")
		s.publish(ctx, "group_created", chat.ID, ownerID)
		return chat, nil
	}
	return models.Chat{}, apperr.Conflict("could not allocate a unique join code")
}

func sameMembers(members []string, a, b string) bool {
	return len(members) == 2 &&
		((members[0] == a && members[1] == b) || (members[0] == b && members[1] == a))
}

// JoinGroup adds userID to the group holding code. Joining twice is a no-op.
func (s *ChatService) JoinGroup(ctx context.Context, code, userID string) (models.Chat, error) {
	code = joincode.Normalize(code)
	if code == "" {
		return models.Chat{}, apperr.Validation("join code is required")
	}
	if !joincode.Valid(code) {
		return models.Chat{}, apperr.NotFound("no group with code %s", code)
	}

	chat, err := s.chats.GetByJoinCode(ctx, code)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return models.Chat{}, apperr.NotFound("no group with code %s", code)
	}
	if err != nil {
		return models.Chat{}, err
	}
	if chat.IsDirect {
		return models.Chat{}, apperr.InvalidOperation("cannot join a direct chat")
	}

	if !chat.HasMember(userID) {
		err = s.retry.do(ctx, "join_group", func() error {
			return s.chats.AddMember(ctx, chat.ID, userID)
		})
		if err != nil {
			return models.Chat{}, err
		}
		s.publish(ctx, "member_joined", chat.ID, userID)
	}
	return s.loadChat(ctx, chat.ID)
}

// RenameGroup changes the name of a group. Only the owner may rename it.
func (s *ChatService) RenameGroup(ctx context.Context, chatID, callerID, name string) (models.Chat, error) {
	name, err := validGroupName(name)
	if err != nil {
		return models.Chat{}, err
	}
	chat, err := s.ownedGroup(ctx, chatID, callerID)
	if err != nil {
		return models.Chat{}, err
	}

	err = s.retry.do(ctx, "rename_group", func() error {
		return s.chats.Rename(ctx, chat.ID, name)
	})
	if err != nil {
		return models.Chat{}, s.notFound(err, chatID)
	}
	chat.Name = name
	s.publish(ctx, "group_renamed", chat.ID, callerID)
	return chat, nil
}

// ClearChat hides every message created up to now from later reads and
// subscriptions. The cursor never moves backwards.
func (s *ChatService) ClearChat(ctx context.Context, chatID, callerID string) (models.Chat, error) {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat.IsDirect {
		return models.Chat{}, apperr.InvalidOperation("direct chats cannot be cleared")
	}
	if chat.OwnerID != callerID {
		return models.Chat{}, apperr.Permission("only the owner can clear the chat")
	}

	var clearedAt = chat.ClearedAt
	err = s.retry.do(ctx, "clear_chat", func() error {
		var err error
		clearedAt, err = s.chats.Clear(ctx, chat.ID, s.clock().UTC())
		return err
	})
	if err != nil {
		return models.Chat{}, s.notFound(err, chatID)
	}
	chat.ClearedAt = clearedAt
	s.publish(ctx, "chat_cleared", chat.ID, callerID)
	return chat, nil
}

// RemoveMember removes targetID from a group. The owner cannot be removed.
func (s *ChatService) RemoveMember(ctx context.Context, chatID, callerID, targetID string) (models.Chat, error) {
	chat, err := s.ownedGroup(ctx, chatID, callerID)
	if err != nil {
		return models.Chat{}, err
	}
	if targetID == chat.OwnerID {
		return models.Chat{}, apperr.Validation("the owner cannot be removed")
	}

	err = s.retry.do(ctx, "remove_member", func() error {
		return s.chats.RemoveMember(ctx, chat.ID, targetID)
	})
	if err != nil {
		return models.Chat{}, err
	}
	s.evict(ctx, chat.ID, targetID)
	s.publish(ctx, "member_removed", chat.ID, targetID)
	return s.loadChat(ctx, chat.ID)
}

// LeaveGroup removes userID from a group. The owner has to delete the group instead.
func (s *ChatService) LeaveGroup(ctx context.Context, chatID, userID string) error {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.IsDirect {
		return apperr.InvalidOperation("direct chats cannot be left")
	}
	if !chat.HasMember(userID) {
		return apperr.Permission("user %s is not a member of chat %s", userID, chatID)
	}
	if chat.OwnerID == userID {
		return apperr.InvalidOperation("the owner cannot leave; delete the group instead")
	}

	err = s.retry.do(ctx, "leave_group", func() error {
		return s.chats.RemoveMember(ctx, chat.ID, userID)
	})
	if err != nil {
		return err
	}
	s.evict(ctx, chat.ID, userID)
	s.publish(ctx, "member_left", chat.ID, userID)
	return nil
}

// evict ends userID's live subscriptions to the chat.
func (s *ChatService) evict(ctx context.Context, chatID, userID string) {
	event := models.ChatEvent{Type: models.EventMemberRemoved, ChatID: chatID, UserID: userID}
	if err := s.broker.Publish(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Str("user_id", userID).Msg("failed to broadcast member removal")
	}
}

// DeleteGroup removes a group with its members and messages and ends every
// live subscription to it.
func (s *ChatService) DeleteGroup(ctx context.Context, chatID, callerID string) error {
	chat, err := s.ownedGroup(ctx, chatID, callerID)
	if err != nil {
		return err
	}

	err = s.retry.do(ctx, "delete_group", func() error {
		return s.chats.DeleteChat(ctx, chat.ID)
	})
	if err != nil {
		return s.notFound(err, chatID)
	}

	if err := s.broker.Publish(ctx, models.ChatEvent{Type: models.EventChatDeleted, ChatID: chat.ID}); err != nil {
		s.logger.Error().Err(err).Str("chat_id", chat.ID).Msg("failed to broadcast chat deletion")
	}
	s.logger.Info().Str("chat_id", chat.ID).Msg("group deleted")
	s.publish(ctx, "group_deleted", chat.ID, callerID)
	return nil
}

// GetChat returns a chat visible to callerID.
func (s *ChatService) GetChat(ctx context.Context, chatID, callerID string) (models.Chat, error) {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if !chat.HasMember(callerID) {
		return models.Chat{}, apperr.Permission("user %s is not a member of chat %s", callerID, chatID)
	}
	return chat, nil
}

// ListChats returns the chats userID belongs to.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	return s.chats.ListChats(ctx, userID)
}

// ListMembers returns the members of a chat with their display names.
func (s *ChatService) ListMembers(ctx context.Context, chatID, callerID string) ([]models.Member, error) {
	chat, err := s.GetChat(ctx, chatID, callerID)
	if err != nil {
		return nil, err
	}

	members := make([]models.Member, 0, len(chat.Members))
	for _, userID := range chat.Members {
		members = append(members, models.Member{
			UserID:      userID,
			DisplayName: s.directory.DisplayName(ctx, userID),
			IsOwner:     !chat.IsDirect && userID == chat.OwnerID,
		})
	}
	return members, nil
}

func (s *ChatService) loadChat(ctx context.Context, chatID string) (models.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, s.notFound(err, chatID)
	}
	return chat, nil
}

func (s *ChatService) ownedGroup(ctx context.Context, chatID, callerID string) (models.Chat, error) {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat.IsDirect {
		return models.Chat{}, apperr.InvalidOperation("chat %s is a direct chat", chatID)
	}
	if chat.OwnerID != callerID {
		return models.Chat{}, apperr.Permission("only the owner can modify chat %s", chatID)
	}
	return chat, nil
}

func (s *ChatService) notFound(err error, chatID string) error {
	if errors.Is(err, repositories.ErrChatNotFound) {
		return apperr.NotFound("chat %s not found", chatID)
	}
	return err
}

func (s *ChatService) publish(ctx context.Context, name, chatID, userID string) {
	payload := map[string]string{"chat_id": chatID, "user_id": userID}
	if err := observability.PublishEvent(ctx, "chat", name, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", name).Msg("domain event not published")
	}
}

func validGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("group name must not be blank")
	}
	if len([]rune(name)) > maxGroupNameLength {
		return "", apperr.Validation("group name must be at most %d characters", maxGroupNameLength)
	}
	return name, nil
}
