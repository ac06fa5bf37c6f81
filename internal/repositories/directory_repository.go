package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"groupchat-service/internal/models"
)

var ErrDirectoryEntryNotFound = errors.New("directory entry not found")

// DirectoryRepository stores the public profile of users.
type DirectoryRepository interface {
	Upsert(ctx context.Context, entry models.DirectoryEntry) error
	Get(ctx context.Context, userID string) (models.DirectoryEntry, error)
	FindByEmail(ctx context.Context, email string) (models.DirectoryEntry, error)
	SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]models.DirectoryEntry, error)
}

// DirectoryRepo is a sqlx implementation of DirectoryRepository.
type DirectoryRepo struct {
	db *sqlx.DB
}

// NewDirectoryRepo constructs a DirectoryRepo.
func NewDirectoryRepo(conn *sqlx.DB) *DirectoryRepo {
	return &DirectoryRepo{db: conn}
}

// Upsert inserts or replaces the entry. Blank fields keep their stored value.
func (r *DirectoryRepo) Upsert(ctx context.Context, entry models.DirectoryEntry) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO directory_entries (user_id, display_name, email, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE SET
            display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), directory_entries.display_name),
            email = COALESCE(NULLIF(EXCLUDED.email, ''), directory_entries.email),
            updated_at = EXCLUDED.updated_at`,
		entry.UserID, entry.DisplayName, entry.Email, entry.UpdatedAt)
	return translate(err)
}

// Get returns the entry of userID.
func (r *DirectoryRepo) Get(ctx context.Context, userID string) (models.DirectoryEntry, error) {
	var entry models.DirectoryEntry
	err := r.db.GetContext(ctx, &entry, `SELECT user_id, display_name, email, updated_at FROM directory_entries WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectoryEntry{}, ErrDirectoryEntryNotFound
	}
	return entry, translate(err)
}

// FindByEmail performs a case-insensitive exact match on email.
func (r *DirectoryRepo) FindByEmail(ctx context.Context, email string) (models.DirectoryEntry, error) {
	var entry models.DirectoryEntry
	err := r.db.GetContext(ctx, &entry, `SELECT user_id, display_name, email, updated_at FROM directory_entries
        WHERE lower(email)=lower($1) ORDER BY updated_at DESC LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectoryEntry{}, ErrDirectoryEntryNotFound
	}
	return entry, translate(err)
}

// SearchByNamePrefix returns entries whose display name starts with prefix, ignoring case.
func (r *DirectoryRepo) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]models.DirectoryEntry, error) {
	entries := []models.DirectoryEntry{}
	err := r.db.SelectContext(ctx, &entries, `SELECT user_id, display_name, email, updated_at FROM directory_entries
        WHERE lower(display_name) LIKE $1 ESCAPE '\'
        ORDER BY display_name, user_id
        LIMIT $2`, likePrefix(prefix), limit)
	return entries, translate(err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(strings.ToLower(prefix)) + "%"
}
