package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

const maxDirectorySearch = 50

// DirectoryService maps user ids to display names and emails.
type DirectoryService struct {
	repo   repositories.DirectoryRepository
	clock  Clock
	logger zerolog.Logger
}

func NewDirectoryService(repo repositories.DirectoryRepository, clock Clock, logger zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		repo:   repo,
		clock:  clock,
		logger: logger.With().Str("component", "directory").Logger(),
	}
}

// Upsert records the profile reported by the identity provider.
func (s *DirectoryService) Upsert(ctx context.Context, userID, displayName, email string) (models.DirectoryEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.DirectoryEntry{}, apperr.Validation("user id is required")
	}
	entry := models.DirectoryEntry{
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		Email:       strings.TrimSpace(email),
		UpdatedAt:   s.clock().UTC(),
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return models.DirectoryEntry{}, err
	}
	return s.Get(ctx, userID)
}

func (s *DirectoryService) Get(ctx context.Context, userID string) (models.DirectoryEntry, error) {
	entry, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repositories.ErrDirectoryEntryNotFound) {
		return models.DirectoryEntry{}, apperr.NotFound("no directory entry for user %s", userID)
	}
	return entry, err
}

func (s *DirectoryService) FindByEmail(ctx context.Context, email string) (models.DirectoryEntry, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.DirectoryEntry{}, apperr.Validation("email is required")
	}
	entry, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrDirectoryEntryNotFound) {
		return models.DirectoryEntry{}, apperr.NotFound("no user with email %s", email)
	}
	return entry, err
}

func (s *DirectoryService) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]models.DirectoryEntry, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, apperr.Validation("prefix is required")
	}
	if limit <= 0 || limit > maxDirectorySearch {
		limit = maxDirectorySearch
	}
	return s.repo.SearchByNamePrefix(ctx, prefix, limit)
}

// DisplayName resolves the name shown for userID. Missing entries and lookup
// failures both yield "Unknown".
func (s *DirectoryService) DisplayName(ctx context.Context, userID string) string {
	entry, err := s.repo.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repositories.ErrDirectoryEntryNotFound) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("directory lookup failed")
		}
		return models.UnknownDisplayName
	}
	if strings.TrimSpace(entry.DisplayName) == "" {
		return models.UnknownDisplayName
	}
	return entry.DisplayName
}
