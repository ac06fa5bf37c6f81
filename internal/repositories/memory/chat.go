package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

// ChatRepo implements repositories.ChatRepository in memory.
type ChatRepo struct {
	s *Store
}

func (r *ChatRepo) CreateDirect(_ context.Context, userA, userB string, now time.Time) (models.Chat, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.DirectKey(userA, userB)
	if rec, ok := s.chats[key]; ok {
		return rec.snapshot(), false, nil
	}
	directKey := key
	rec := &chatRecord{
		chat: models.Chat{
			ID:        key,
			OwnerID:   userA,
			IsDirect:  true,
			DirectKey: &directKey,
			CreatedAt: now.UTC(),
			ClearedAt: time.Unix(0, 0).UTC(),
		},
		members: map[string]int64{},
	}
	rec.chat.LastMessageAt = rec.chat.ClearedAt
	s.addMember(rec, userA)
	s.addMember(rec, userB)
	s.chats[key] = rec
	return rec.snapshot(), true, nil
}

func (r *ChatRepo) CreateGroup(_ context.Context, chat models.Chat) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat.JoinCode != nil {
		if _, taken := s.joinCodes[*chat.JoinCode]; taken {
			return repositories.ErrJoinCodeTaken
		}
	}
	if _, exists := s.chats[chat.ID]; exists {
		return fmt.Errorf("chat %s already exists", chat.ID)
	}

	chat.Members = nil
	if chat.ClearedAt.IsZero() {
		chat.ClearedAt = time.Unix(0, 0).UTC()
	}
	chat.LastMessageAt = chat.ClearedAt
	rec := &chatRecord{chat: chat, members: map[string]int64{}}
	s.addMember(rec, chat.OwnerID)
	s.chats[chat.ID] = rec
	if chat.JoinCode != nil {
		s.joinCodes[*chat.JoinCode] = chat.ID
	}
	return nil
}

func (s *Store) addMember(rec *chatRecord, userID string) {
	if _, ok := rec.members[userID]; ok {
		return
	}
	s.joinSeq++
	rec.members[userID] = s.joinSeq
}

func (r *ChatRepo) JoinCodeExists(_ context.Context, code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.joinCodes[code]
	return ok, nil
}

func (r *ChatRepo) GetChat(_ context.Context, chatID string) (models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.chats[chatID]
	if !ok {
		return models.Chat{}, repositories.ErrChatNotFound
	}
	return rec.snapshot(), nil
}

func (r *ChatRepo) GetByJoinCode(ctx context.Context, code string) (models.Chat, error) {
	r.s.mu.Lock()
	chatID, ok := r.s.joinCodes[code]
	r.s.mu.Unlock()
	if !ok {
		return models.Chat{}, repositories.ErrChatNotFound
	}
	return r.GetChat(ctx, chatID)
}

func (r *ChatRepo) ListChats(_ context.Context, userID string) ([]models.ChatSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type ranked struct {
		summary models.ChatSummary
		active  time.Time
	}
	var list []ranked
	for _, rec := range r.s.chats {
		if _, ok := rec.members[userID]; !ok {
			continue
		}
		active := rec.chat.CreatedAt
		if rec.chat.LastMessageAt.After(active) {
			active = rec.chat.LastMessageAt
		}
		list = append(list, ranked{
			summary: models.ChatSummary{
				ChatID:   rec.chat.ID,
				Name:     rec.chat.Name,
				IsDirect: rec.chat.IsDirect,
				OwnerID:  rec.chat.OwnerID,
				LastSeq:  rec.chat.LastSeq,
				Created:  rec.chat.CreatedAt,
			},
			active: active,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].active.Equal(list[j].active) {
			return list[i].active.After(list[j].active)
		}
		return list[i].summary.ChatID < list[j].summary.ChatID
	})

	out := make([]models.ChatSummary, len(list))
	for i, item := range list {
		out[i] = item.summary
	}
	return out, nil
}

func (r *ChatRepo) IsMember(_ context.Context, chatID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.chats[chatID]
	if !ok {
		return false, nil
	}
	_, member := rec.members[userID]
	return member, nil
}

func (r *ChatRepo) AddMember(_ context.Context, chatID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec, ok := r.s.chats[chatID]; ok {
		r.s.addMember(rec, userID)
	}
	return nil
}

func (r *ChatRepo) RemoveMember(_ context.Context, chatID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec, ok := r.s.chats[chatID]; ok {
		delete(rec.members, userID)
	}
	return nil
}

func (r *ChatRepo) Rename(_ context.Context, chatID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.chats[chatID]
	if !ok {
		return repositories.ErrChatNotFound
	}
	rec.chat.Name = name
	return nil
}

func (r *ChatRepo) Clear(_ context.Context, chatID string, at time.Time) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.chats[chatID]
	if !ok {
		return time.Time{}, repositories.ErrChatNotFound
	}
	at = at.UTC().Truncate(time.Microsecond)
	if rec.chat.LastMessageAt.After(at) {
		at = rec.chat.LastMessageAt
	}
	if at.After(rec.chat.ClearedAt) {
		rec.chat.ClearedAt = at
	}
	return rec.chat.ClearedAt, nil
}

func (r *ChatRepo) DeleteChat(_ context.Context, chatID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.chats[chatID]
	if !ok {
		return repositories.ErrChatNotFound
	}
	if rec.chat.JoinCode != nil {
		delete(r.s.joinCodes, *rec.chat.JoinCode)
	}
	delete(r.s.messages, chatID)
	delete(r.s.chats, chatID)
	return nil
}
