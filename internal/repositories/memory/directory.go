package memory

import (
	"context"
	"sort"
	"strings"

	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

// DirectoryRepo implements repositories.DirectoryRepository in memory.
type DirectoryRepo struct {
	s *Store
}

func (r *DirectoryRepo) Upsert(_ context.Context, entry models.DirectoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if current, ok := r.s.directory[entry.UserID]; ok {
		if entry.DisplayName == "" {
			entry.DisplayName = current.DisplayName
		}
		if entry.Email == "" {
			entry.Email = current.Email
		}
	}
	r.s.directory[entry.UserID] = entry
	return nil
}

func (r *DirectoryRepo) Get(_ context.Context, userID string) (models.DirectoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.directory[userID]
	if !ok {
		return models.DirectoryEntry{}, repositories.ErrDirectoryEntryNotFound
	}
	return entry, nil
}

func (r *DirectoryRepo) FindByEmail(_ context.Context, email string) (models.DirectoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var found *models.DirectoryEntry
	for _, entry := range r.s.directory {
		if !strings.EqualFold(entry.Email, email) {
			continue
		}
		if found == nil || entry.UpdatedAt.After(found.UpdatedAt) {
			e := entry
			found = &e
		}
	}
	if found == nil {
		return models.DirectoryEntry{}, repositories.ErrDirectoryEntryNotFound
	}
	return *found, nil
}

func (r *DirectoryRepo) SearchByNamePrefix(_ context.Context, prefix string, limit int) ([]models.DirectoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prefix = strings.ToLower(prefix)
	out := []models.DirectoryEntry{}
	for _, entry := range r.s.directory {
		if strings.HasPrefix(strings.ToLower(entry.DisplayName), prefix) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
