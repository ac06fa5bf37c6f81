package models

import "time"

// StreakRecord holds a user's daily activity streak.
type StreakRecord struct {
	UserID         string     `db:"user_id" json:"user_id"`
	LastActiveDate *time.Time `db:"last_active_date" json:"last_active_date,omitempty"`
	CurrentStreak  int        `db:"current_streak" json:"current_streak"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
