package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"groupchat-service/internal/db"
	"groupchat-service/internal/models"
)

var (
	ErrChatNotFound  = errors.New("chat not found")
	ErrJoinCodeTaken = errors.New("join code already in use")
)

const chatColumns = `id, name, owner_id, is_direct, direct_key, join_code, created_at, cleared_at, last_seq, last_message_at`

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	CreateDirect(ctx context.Context, userA, userB string, now time.Time) (models.Chat, bool, error)
	CreateGroup(ctx context.Context, chat models.Chat) error
	JoinCodeExists(ctx context.Context, code string) (bool, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	GetByJoinCode(ctx context.Context, code string) (models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	AddMember(ctx context.Context, chatID, userID string) error
	RemoveMember(ctx context.Context, chatID, userID string) error
	Rename(ctx context.Context, chatID, name string) error
	Clear(ctx context.Context, chatID string, at time.Time) (time.Time, error)
	DeleteChat(ctx context.Context, chatID string) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(conn *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: conn}
}

// CreateDirect creates the direct chat between userA and userB unless it
// already exists. The boolean reports whether this call created it; an
// existing record is returned untouched.
func (r *ChatRepo) CreateDirect(ctx context.Context, userA, userB string, now time.Time) (models.Chat, bool, error) {
	key := models.DirectKey(userA, userB)
	created := false
	err := db.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO chats (id, name, owner_id, is_direct, direct_key, created_at)
        VALUES ($1, '', $2, TRUE, $1, $3) ON CONFLICT DO NOTHING`, key, userA, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		created = true
		_, err = tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2), ($1, $3)
        ON CONFLICT DO NOTHING`, key, userA, userB)
		return err
	})
	if err != nil {
		return models.Chat{}, false, translate(err)
	}

	chat, err := r.GetChat(ctx, key)
	return chat, created, err
}

// CreateGroup inserts a group chat with its owner as the only member.
// A join code collision at commit returns ErrJoinCodeTaken.
func (r *ChatRepo) CreateGroup(ctx context.Context, chat models.Chat) error {
	err := db.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chats (id, name, owner_id, is_direct, join_code, created_at)
        VALUES ($1, $2, $3, FALSE, $4, $5)`, chat.ID, chat.Name, chat.OwnerID, chat.JoinCode, chat.CreatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chat.ID, chat.OwnerID)
		return err
	})
	if isUniqueViolation(err, "chats_join_code_key") {
		return ErrJoinCodeTaken
	}
	return translate(err)
}

// JoinCodeExists reports whether any chat holds code.
func (r *ChatRepo) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE join_code=$1)`, code)
	return exists, translate(err)
}

// GetChat fetches a chat with its members.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	return r.getBy(ctx, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
}

// GetByJoinCode fetches the chat holding code.
func (r *ChatRepo) GetByJoinCode(ctx context.Context, code string) (models.Chat, error) {
	return r.getBy(ctx, `SELECT `+chatColumns+` FROM chats WHERE join_code=$1`, code)
}

func (r *ChatRepo) getBy(ctx context.Context, query string, arg string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, translate(err)
	}

	chat.Members = []string{}
	if err := r.db.SelectContext(ctx, &chat.Members, `SELECT user_id FROM chat_members WHERE chat_id=$1 ORDER BY joined_at, user_id`, chat.ID); err != nil {
		return models.Chat{}, translate(err)
	}
	return chat, nil
}

// ListChats returns the chats the user belongs to, most recently active first.
func (r *ChatRepo) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	query := `SELECT c.id, c.name, c.is_direct, c.owner_id, c.last_seq, c.created_at FROM chats c
        INNER JOIN chat_members cm ON cm.chat_id = c.id
        WHERE cm.user_id=$1
        ORDER BY GREATEST(c.created_at, c.last_message_at) DESC, c.id`
	chats := []models.ChatSummary{}
	err := r.db.SelectContext(ctx, &chats, query, userID)
	return chats, translate(err)
}

// IsMember checks whether a user belongs to the chat.
func (r *ChatRepo) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, translate(err)
}

// AddMember adds userID to the member set. Adding an existing member is a no-op.
func (r *ChatRepo) AddMember(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id)
        SELECT id, $2 FROM chats WHERE id=$1
        ON CONFLICT DO NOTHING`, chatID, userID)
	return translate(err)
}

// RemoveMember removes userID from the member set. Removing a non-member is a no-op.
func (r *ChatRepo) RemoveMember(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	return translate(err)
}

// Rename updates the chat name.
func (r *ChatRepo) Rename(ctx context.Context, chatID, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET name=$2 WHERE id=$1`, chatID, name)
	return affectedOne(res, err, ErrChatNotFound)
}

// Clear advances the clear cursor to at or to the chat's latest message time,
// whichever is later, never moving it backwards, and returns the resulting cursor.
func (r *ChatRepo) Clear(ctx context.Context, chatID string, at time.Time) (time.Time, error) {
	var clearedAt time.Time
	err := r.db.GetContext(ctx, &clearedAt, `UPDATE chats SET cleared_at = GREATEST(cleared_at, $2, last_message_at) WHERE id=$1 RETURNING cleared_at`, chatID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrChatNotFound
	}
	return clearedAt, translate(err)
}

// DeleteChat removes the chat, its members and its messages in one transaction.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	err := db.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id=$1`, chatID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id=$1`, chatID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
		return affectedOne(res, err, ErrChatNotFound)
	})
	if errors.Is(err, ErrChatNotFound) {
		return err
	}
	return translate(err)
}

func affectedOne(res sql.Result, err error, notFound error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
