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

const messageColumns = `id, chat_id, seq, sender_id, sender_name, kind, body, file_name, file_url, file_mime, file_size, created_at`

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message, now time.Time) (models.Message, error)
	ListAfterSeq(ctx context.Context, chatID string, clearedAt time.Time, afterSeq int64) ([]models.Message, error)
	History(ctx context.Context, chatID string, clearedAt time.Time, beforeSeq int64, limit int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(conn *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: conn}
}

type messageRow struct {
	ID         int64          `db:"id"`
	ChatID     string         `db:"chat_id"`
	Seq        int64          `db:"seq"`
	SenderID   string         `db:"sender_id"`
	SenderName string         `db:"sender_name"`
	Kind       string         `db:"kind"`
	Body       string         `db:"body"`
	FileName   sql.NullString `db:"file_name"`
	FileURL    sql.NullString `db:"file_url"`
	FileMime   sql.NullString `db:"file_mime"`
	FileSize   sql.NullInt64  `db:"file_size"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (row messageRow) toModel() models.Message {
	msg := models.Message{
		ID:         row.ID,
		ChatID:     row.ChatID,
		Seq:        row.Seq,
		SenderID:   row.SenderID,
		SenderName: row.SenderName,
		Kind:       models.MessageKind(row.Kind),
		Text:       row.Body,
		CreatedAt:  row.CreatedAt,
	}
	if row.FileURL.Valid {
		msg.File = &models.FileAttachment{
			Name:      row.FileName.String,
			URL:       row.FileURL.String,
			Mime:      row.FileMime.String,
			SizeBytes: row.FileSize.Int64,
		}
	}
	return msg
}

// Append stores msg as the chat's next message. The chat row is locked for
// the duration of the transaction, so seq is contiguous per chat and
// created_at is strictly increasing in seq order.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message, now time.Time) (models.Message, error) {
	err := db.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var head struct {
			LastSeq       int64     `db:"last_seq"`
			LastMessageAt time.Time `db:"last_message_at"`
			ClearedAt     time.Time `db:"cleared_at"`
		}
		err := tx.GetContext(ctx, &head, `SELECT last_seq, last_message_at, cleared_at FROM chats WHERE id=$1 FOR UPDATE`, msg.ChatID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrChatNotFound
		}
		if err != nil {
			return err
		}

		msg.Seq = head.LastSeq + 1
		msg.CreatedAt = models.NextMessageTime(now, head.LastMessageAt, head.ClearedAt)

		var fileName, fileURL, fileMime sql.NullString
		var fileSize sql.NullInt64
		if msg.File != nil {
			fileName = sql.NullString{String: msg.File.Name, Valid: true}
			fileURL = sql.NullString{String: msg.File.URL, Valid: true}
			fileMime = sql.NullString{String: msg.File.Mime, Valid: true}
			fileSize = sql.NullInt64{Int64: msg.File.SizeBytes, Valid: true}
		}

		if err := tx.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, seq, sender_id, sender_name, kind, body, file_name, file_url, file_mime, file_size, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
			msg.ChatID, msg.Seq, msg.SenderID, msg.SenderName, string(msg.Kind), msg.Text, fileName, fileURL, fileMime, fileSize, msg.CreatedAt).
			Scan(&msg.ID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE chats SET last_seq=$2, last_message_at=$3 WHERE id=$1`, msg.ChatID, msg.Seq, msg.CreatedAt)
		return err
	})
	if errors.Is(err, ErrChatNotFound) {
		return models.Message{}, err
	}
	if err != nil {
		return models.Message{}, translate(err)
	}
	return msg, nil
}

// ListAfterSeq returns visible messages with seq greater than afterSeq in seq order.
func (r *MessageRepo) ListAfterSeq(ctx context.Context, chatID string, clearedAt time.Time, afterSeq int64) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE chat_id=$1 AND created_at > $2 AND seq > $3
        ORDER BY seq ASC`
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, chatID, clearedAt, afterSeq); err != nil {
		return nil, translate(err)
	}
	return toMessages(rows, false), nil
}

// History returns up to limit visible messages older than beforeSeq, oldest
// first. A zero beforeSeq starts from the newest message.
func (r *MessageRepo) History(ctx context.Context, chatID string, clearedAt time.Time, beforeSeq int64, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE chat_id=$1 AND created_at > $2 AND ($3 = 0 OR seq < $3)
        ORDER BY seq DESC
        LIMIT $4`
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, chatID, clearedAt, beforeSeq, limit); err != nil {
		return nil, translate(err)
	}
	return toMessages(rows, true), nil
}

func toMessages(rows []messageRow, reverse bool) []models.Message {
	msgs := make([]models.Message, len(rows))
	for i, row := range rows {
		if reverse {
			msgs[len(rows)-1-i] = row.toModel()
		} else {
			msgs[i] = row.toModel()
		}
	}
	return msgs
}
