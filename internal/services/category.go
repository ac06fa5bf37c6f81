package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/jobs"
	"groupchat-service/internal/models"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/repositories"
)

const (
	maxCategoryNameLength = 80
	maxDeleteAttempts     = 5
)

// JobQueue accepts background work.
type JobQueue interface {
	Enqueue(job jobs.Job) error
}

// CategoryService manages categories and keeps the category fields of notes
// consistent with them.
type CategoryService struct {
	repo      repositories.CategoryRepository
	queue     JobQueue
	chunkSize int
	retry     RetryPolicy
	clock     Clock
	logger    zerolog.Logger
}

func NewCategoryService(repo repositories.CategoryRepository, queue JobQueue, chunkSize int, retry RetryPolicy, clock Clock, logger zerolog.Logger) *CategoryService {
	if chunkSize <= 0 {
		chunkSize = 400
	}
	return &CategoryService{
		repo:      repo,
		queue:     queue,
		chunkSize: chunkSize,
		retry:     retry,
		clock:     clock,
		logger:    logger.With().Str("component", "categories").Logger(),
	}
}

// Create adds a category for ownerID. Names are unique per owner, ignoring case.
func (s *CategoryService) Create(ctx context.Context, ownerID, name string) (models.Category, error) {
	name, err := validCategoryName(name)
	if err != nil {
		return models.Category{}, err
	}
	taken, err := s.repo.NameTaken(ctx, ownerID, name, "")
	if err != nil {
		return models.Category{}, err
	}
	if taken {
		return models.Category{}, apperr.Conflict("category %q already exists", name)
	}

	category := models.Category{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, category); err != nil {
		if errors.Is(err, repositories.ErrCategoryNameTaken) {
			return models.Category{}, apperr.Conflict("category %q already exists", name)
		}
		return models.Category{}, err
	}
	return category, nil
}

// Rename renames the category and schedules the rewrite of its dependents.
// It returns once the category record itself is renamed.
func (s *CategoryService) Rename(ctx context.Context, ownerID, categoryID, name string) (models.Category, error) {
	name, err := validCategoryName(name)
	if err != nil {
		return models.Category{}, err
	}
	category, err := s.owned(ctx, ownerID, categoryID)
	if err != nil {
		return models.Category{}, err
	}
	taken, err := s.repo.NameTaken(ctx, ownerID, name, categoryID)
	if err != nil {
		return models.Category{}, err
	}
	if taken {
		return models.Category{}, apperr.Conflict("category %q already exists", name)
	}

	if err := s.repo.Rename(ctx, categoryID, name); err != nil {
		switch {
		case errors.Is(err, repositories.ErrCategoryNameTaken):
			return models.Category{}, apperr.Conflict("category %q already exists", name)
		case errors.Is(err, repositories.ErrCategoryNotFound):
			return models.Category{}, apperr.NotFound("category %s not found", categoryID)
		}
		return models.Category{}, err
	}
	category.Name = name

	job := jobs.Job{
		Name: "category_propagate",
		Run: func(ctx context.Context) error {
			_, err := s.PropagateName(ctx, categoryID, name)
			return err
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		// The periodic sweep picks the category up later.
		s.logger.Warn().Err(err).Str("category_id", categoryID).Msg("propagation not enqueued")
	}
	return category, nil
}

// DeleteAndReassign moves every dependent of the category to Uncategorized in
// bounded chunks and then deletes the category. It is safe to call again after
// a failure.
func (s *CategoryService) DeleteAndReassign(ctx context.Context, ownerID, categoryID string) (models.Progress, error) {
	if _, err := s.owned(ctx, ownerID, categoryID); err != nil {
		return models.Progress{}, err
	}

	var progress models.Progress
	for attempt := 1; ; attempt++ {
		p, err := s.reassign(ctx, categoryID)
		progress = add(progress, p)
		if err != nil {
			return progress, err
		}

		err = s.repo.Delete(ctx, categoryID)
		if err == nil || errors.Is(err, repositories.ErrCategoryNotFound) {
			break
		}
		if !errors.Is(err, repositories.ErrCategoryInUse) {
			return progress, err
		}
		// A note was filed under the category after the last chunk.
		if attempt == maxDeleteAttempts {
			return progress, apperr.Transient(err)
		}
	}
	s.logger.Info().Str("category_id", categoryID).Int("chunks", progress.Chunks).Int64("rewritten", progress.Rewritten).Msg("category deleted")
	return progress, nil
}

// PropagateName rewrites the denormalised name of every dependent still
// carrying a different one.
func (s *CategoryService) PropagateName(ctx context.Context, categoryID, name string) (models.Progress, error) {
	return s.chunked(ctx, "category_propagate", func() (int64, error) {
		return s.repo.PropagateNameChunk(ctx, categoryID, name, s.chunkSize)
	})
}

// Sweep repairs dependents left inconsistent by interrupted jobs: stale names
// are propagated and notes of deleted categories are reassigned.
func (s *CategoryService) Sweep(ctx context.Context) (models.Progress, error) {
	var total models.Progress

	stale, err := s.repo.ListStale(ctx, s.chunkSize)
	if err != nil {
		return total, err
	}
	for _, category := range stale {
		p, err := s.PropagateName(ctx, category.ID, category.Name)
		total = add(total, p)
		if err != nil {
			return total, err
		}
	}

	orphaned, err := s.repo.ListOrphaned(ctx, s.chunkSize)
	if err != nil {
		return total, err
	}
	for _, categoryID := range orphaned {
		p, err := s.reassign(ctx, categoryID)
		total = add(total, p)
		if err != nil {
			return total, err
		}
	}

	if total.Rewritten > 0 {
		s.logger.Info().Int("stale", len(stale)).Int("orphaned", len(orphaned)).Int64("rewritten", total.Rewritten).Msg("category sweep repaired notes")
	}
	return total, nil
}

// UpsertNote stores the category projection of a note owned by ownerID.
func (s *CategoryService) UpsertNote(ctx context.Context, ownerID, noteID, title, categoryID string) (models.NoteRef, error) {
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return models.NoteRef{}, apperr.Validation("note id is required")
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID != "" {
		if _, err := s.owned(ctx, ownerID, categoryID); err != nil {
			return models.NoteRef{}, err
		}
	}

	note, err := s.repo.UpsertNote(ctx, models.NoteRef{
		ID:         noteID,
		OwnerID:    ownerID,
		Title:      strings.TrimSpace(title),
		CategoryID: categoryID,
		UpdatedAt:  s.clock().UTC(),
	})
	switch {
	case errors.Is(err, repositories.ErrNoteNotFound):
		return models.NoteRef{}, apperr.Permission("note %s belongs to another user", noteID)
	case errors.Is(err, repositories.ErrCategoryNotFound):
		return models.NoteRef{}, apperr.NotFound("category %s not found", categoryID)
	}
	return note, err
}

// GetNote returns a note owned by ownerID.
func (s *CategoryService) GetNote(ctx context.Context, ownerID, noteID string) (models.NoteRef, error) {
	note, err := s.repo.GetNote(ctx, noteID)
	if errors.Is(err, repositories.ErrNoteNotFound) {
		return models.NoteRef{}, apperr.NotFound("note %s not found", noteID)
	}
	if err != nil {
		return models.NoteRef{}, err
	}
	if note.OwnerID != ownerID {
		return models.NoteRef{}, apperr.Permission("note %s belongs to another user", noteID)
	}
	return note, nil
}

func (s *CategoryService) reassign(ctx context.Context, categoryID string) (models.Progress, error) {
	return s.chunked(ctx, "category_reassign", func() (int64, error) {
		return s.repo.ReassignChunk(ctx, categoryID, s.chunkSize)
	})
}

// chunked runs chunk until it rewrites nothing. Each chunk is retried on its own.
func (s *CategoryService) chunked(ctx context.Context, job string, chunk func() (int64, error)) (models.Progress, error) {
	var progress models.Progress
	for {
		if err := ctx.Err(); err != nil {
			return progress, err
		}

		var n int64
		err := s.retry.do(ctx, job, func() error {
			var err error
			n, err = chunk()
			return err
		})
		if err != nil {
			return progress, err
		}
		if n == 0 {
			return progress, nil
		}
		progress.Chunks++
		progress.Rewritten += n
		observability.AddCategoryRewrites(job, n)
	}
}

func (s *CategoryService) owned(ctx context.Context, ownerID, categoryID string) (models.Category, error) {
	category, err := s.repo.Get(ctx, categoryID)
	if errors.Is(err, repositories.ErrCategoryNotFound) {
		return models.Category{}, apperr.NotFound("category %s not found", categoryID)
	}
	if err != nil {
		return models.Category{}, err
	}
	if category.OwnerID != ownerID {
		return models.Category{}, apperr.Permission("category %s belongs to another user", categoryID)
	}
	return category, nil
}

func add(a, b models.Progress) models.Progress {
	return models.Progress{Chunks: a.Chunks + b.Chunks, Rewritten: a.Rewritten + b.Rewritten}
}

func validCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("category name must not be blank")
	}
	if len([]rune(name)) > maxCategoryNameLength {
		return "", apperr.Validation("category name must be at most %d characters", maxCategoryNameLength)
	}
	if strings.EqualFold(name, models.UncategorizedName) {
		return "", apperr.Validation("%q is reserved", models.UncategorizedName)
	}
	return name, nil
}
