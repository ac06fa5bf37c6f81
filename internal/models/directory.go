package models

import "time"

// UnknownDisplayName is shown when a user has no directory entry.
const UnknownDisplayName = "Unknown"

// DirectoryEntry maps a user id to its public profile.
type DirectoryEntry struct {
	UserID      string    `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       string    `db:"email" json:"email"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
