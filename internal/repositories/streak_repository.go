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

var ErrStreakNotFound = errors.New("streak not found")

// StreakUpdate computes the new record from the stored one. exists is false
// when the user had no activity recorded yet.
type StreakUpdate func(current models.StreakRecord, exists bool) models.StreakRecord

// StreakRepository persists per-user streak records.
type StreakRepository interface {
	Get(ctx context.Context, userID string) (models.StreakRecord, error)
	Update(ctx context.Context, userID string, fn StreakUpdate) (models.StreakRecord, error)
}

// StreakRepo is a sqlx implementation of StreakRepository.
type StreakRepo struct {
	db *sqlx.DB
}

// NewStreakRepo constructs a StreakRepo.
func NewStreakRepo(conn *sqlx.DB) *StreakRepo {
	return &StreakRepo{db: conn}
}

// Get returns the streak record of userID.
func (r *StreakRepo) Get(ctx context.Context, userID string) (models.StreakRecord, error) {
	var rec models.StreakRecord
	err := r.db.GetContext(ctx, &rec, `SELECT user_id, last_active_date, current_streak, updated_at FROM streaks WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StreakRecord{}, ErrStreakNotFound
	}
	return rec, translate(err)
}

// Update applies fn to the user's record inside one transaction holding the
// row lock, so concurrent updates for the same user are serialised.
func (r *StreakRepo) Update(ctx context.Context, userID string, fn StreakUpdate) (models.StreakRecord, error) {
	var next models.StreakRecord
	err := db.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO streaks (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID); err != nil {
			return err
		}

		var current models.StreakRecord
		if err := tx.GetContext(ctx, &current, `SELECT user_id, last_active_date, current_streak, updated_at FROM streaks
            WHERE user_id=$1 FOR UPDATE`, userID); err != nil {
			return err
		}

		next = fn(current, current.LastActiveDate != nil)
		next.UserID = userID
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `UPDATE streaks SET last_active_date=$2, current_streak=$3, updated_at=$4 WHERE user_id=$1`,
			userID, next.LastActiveDate, next.CurrentStreak, next.UpdatedAt)
		return err
	})
	if err != nil {
		return models.StreakRecord{}, translate(err)
	}
	return next, nil
}
