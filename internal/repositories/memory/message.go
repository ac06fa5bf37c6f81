package memory

import (
	"context"
	"time"

	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

// MessageRepo implements repositories.MessageRepository in memory.
type MessageRepo struct {
	s *Store
}

func (r *MessageRepo) Append(_ context.Context, msg models.Message, now time.Time) (models.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[msg.ChatID]
	if !ok {
		return models.Message{}, repositories.ErrChatNotFound
	}

	s.msgID++
	msg.ID = s.msgID
	msg.Seq = rec.chat.LastSeq + 1
	msg.CreatedAt = models.NextMessageTime(now, rec.chat.LastMessageAt, rec.chat.ClearedAt)
	if msg.File != nil {
		file := *msg.File
		msg.File = &file
	}

	rec.chat.LastSeq = msg.Seq
	rec.chat.LastMessageAt = msg.CreatedAt
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	return msg, nil
}

func (r *MessageRepo) ListAfterSeq(_ context.Context, chatID string, clearedAt time.Time, afterSeq int64) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []models.Message{}
	for _, msg := range r.s.messages[chatID] {
		if msg.Seq > afterSeq && msg.CreatedAt.After(clearedAt) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *MessageRepo) History(_ context.Context, chatID string, clearedAt time.Time, beforeSeq int64, limit int) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	log := r.s.messages[chatID]
	out := []models.Message{}
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		msg := log[i]
		if beforeSeq != 0 && msg.Seq >= beforeSeq {
			continue
		}
		if !msg.CreatedAt.After(clearedAt) {
			break
		}
		out = append(out, msg)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
