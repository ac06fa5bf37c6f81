package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"groupchat-service/internal/db"
	"groupchat-service/internal/models"
)

var (
	ErrCategoryNotFound  = errors.New("category not found")
	ErrCategoryNameTaken = errors.New("category name already in use")
	ErrNoteNotFound      = errors.New("note not found")
	// ErrCategoryInUse is returned by Delete while notes still reference the category.
	ErrCategoryInUse = errors.New("category still has notes")
)

// CategoryRepository persists categories and the category fields of notes.
type CategoryRepository interface {
	Create(ctx context.Context, category models.Category) error
	Get(ctx context.Context, categoryID string) (models.Category, error)
	NameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error)
	Rename(ctx context.Context, categoryID, name string) error
	Delete(ctx context.Context, categoryID string) error
	ReassignChunk(ctx context.Context, categoryID string, limit int) (int64, error)
	PropagateNameChunk(ctx context.Context, categoryID, name string, limit int) (int64, error)
	ListStale(ctx context.Context, limit int) ([]models.Category, error)
	ListOrphaned(ctx context.Context, limit int) ([]string, error)
	UpsertNote(ctx context.Context, note models.NoteRef) (models.NoteRef, error)
	GetNote(ctx context.Context, noteID string) (models.NoteRef, error)
}

// CategoryRepo is a sqlx implementation of CategoryRepository.
type CategoryRepo struct {
	db *sqlx.DB
}

// NewCategoryRepo constructs a CategoryRepo.
func NewCategoryRepo(conn *sqlx.DB) *CategoryRepo {
	return &CategoryRepo{db: conn}
}

// Create inserts a category. A case-insensitive name clash for the same
// owner returns ErrCategoryNameTaken.
func (r *CategoryRepo) Create(ctx context.Context, category models.Category) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (id, owner_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		category.ID, category.OwnerID, category.Name, category.CreatedAt)
	if isUniqueViolation(err, "categories_owner_name_idx") {
		return ErrCategoryNameTaken
	}
	return translate(err)
}

// Get fetches a category by id.
func (r *CategoryRepo) Get(ctx context.Context, categoryID string) (models.Category, error) {
	var category models.Category
	err := r.db.GetContext(ctx, &category, `SELECT id, owner_id, name, created_at FROM categories WHERE id=$1`, categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Category{}, ErrCategoryNotFound
	}
	return category, translate(err)
}

// NameTaken reports whether another category of ownerID is named name, ignoring case.
func (r *CategoryRepo) NameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	var taken bool
	err := r.db.GetContext(ctx, &taken, `SELECT EXISTS(SELECT 1 FROM categories
        WHERE owner_id=$1 AND lower(name)=lower($2) AND id<>$3)`, ownerID, name, excludeID)
	return taken, translate(err)
}

// Rename updates the category record only; dependents are rewritten separately.
func (r *CategoryRepo) Rename(ctx context.Context, categoryID, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name=$2 WHERE id=$1`, categoryID, name)
	if isUniqueViolation(err, "categories_owner_name_idx") {
		return ErrCategoryNameTaken
	}
	return affectedOne(res, err, ErrCategoryNotFound)
}

// Delete removes the category record once no note references it. The row lock
// makes a concurrent UpsertNote either land before the check or fail after the delete.
func (r *CategoryRepo) Delete(ctx context.Context, categoryID string) error {
	err := db.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var id string
		err := tx.GetContext(ctx, &id, `SELECT id FROM categories WHERE id=$1 FOR UPDATE`, categoryID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCategoryNotFound
		}
		if err != nil {
			return err
		}
		var inUse bool
		if err := tx.GetContext(ctx, &inUse, `SELECT EXISTS(SELECT 1 FROM notes WHERE category_id=$1)`, categoryID); err != nil {
			return err
		}
		if inUse {
			return ErrCategoryInUse
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE id=$1`, categoryID)
		return err
	})
	return translate(err)
}

// ReassignChunk moves at most limit notes of categoryID to Uncategorized and
// returns how many were rewritten. Rows locked by a concurrent writer are
// waited for, so a zero count means none are left.
func (r *CategoryRepo) ReassignChunk(ctx context.Context, categoryID string, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notes SET category_id='', category_name=$2, updated_at=NOW()
        WHERE id IN (
            SELECT id FROM notes WHERE category_id=$1
            ORDER BY id LIMIT $3
            FOR UPDATE
        )`, categoryID, models.UncategorizedName, limit)
	return rowsAffected(res, err)
}

// PropagateNameChunk rewrites the denormalised name of at most limit notes of
// categoryID that still carry a different name.
func (r *CategoryRepo) PropagateNameChunk(ctx context.Context, categoryID, name string, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notes SET category_name=$2, updated_at=NOW()
        WHERE id IN (
            SELECT id FROM notes WHERE category_id=$1 AND category_name<>$2
            ORDER BY id LIMIT $3
            FOR UPDATE
        )`, categoryID, name, limit)
	return rowsAffected(res, err)
}

// ListStale returns categories that have dependents showing an outdated name.
func (r *CategoryRepo) ListStale(ctx context.Context, limit int) ([]models.Category, error) {
	categories := []models.Category{}
	err := r.db.SelectContext(ctx, &categories, `SELECT c.id, c.owner_id, c.name, c.created_at FROM categories c
        WHERE EXISTS (SELECT 1 FROM notes n WHERE n.category_id = c.id AND n.category_name <> c.name)
        ORDER BY c.id
        LIMIT $1`, limit)
	return categories, translate(err)
}

// ListOrphaned returns category ids referenced by notes whose category no longer exists.
func (r *CategoryRepo) ListOrphaned(ctx context.Context, limit int) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT n.category_id FROM notes n
        LEFT JOIN categories c ON c.id = n.category_id
        WHERE n.category_id <> '' AND c.id IS NULL
        ORDER BY n.category_id
        LIMIT $1`, limit)
	return ids, translate(err)
}

// UpsertNote stores the category projection of a note. The category row is
// share-locked while the note is written so it cannot be deleted underneath;
// a missing category returns ErrCategoryNotFound. An empty category id files
// the note under Uncategorized.
func (r *CategoryRepo) UpsertNote(ctx context.Context, note models.NoteRef) (models.NoteRef, error) {
	var saved models.NoteRef
	err := db.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		name := models.UncategorizedName
		if note.CategoryID != "" {
			err := tx.GetContext(ctx, &name, `SELECT name FROM categories WHERE id=$1 FOR SHARE`, note.CategoryID)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCategoryNotFound
			}
			if err != nil {
				return err
			}
		}
		err := tx.GetContext(ctx, &saved, `INSERT INTO notes (id, owner_id, title, category_id, category_name, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            category_id = EXCLUDED.category_id,
            category_name = EXCLUDED.category_name,
            updated_at = EXCLUDED.updated_at
        WHERE notes.owner_id = EXCLUDED.owner_id
        RETURNING id, owner_id, title, category_id, category_name, updated_at`,
			note.ID, note.OwnerID, note.Title, note.CategoryID, name, note.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoteNotFound
		}
		return err
	})
	if err != nil {
		return models.NoteRef{}, translate(err)
	}
	return saved, nil
}

// GetNote fetches the projection of a note.
func (r *CategoryRepo) GetNote(ctx context.Context, noteID string) (models.NoteRef, error) {
	var note models.NoteRef
	err := r.db.GetContext(ctx, &note, `SELECT id, owner_id, title, category_id, category_name, updated_at FROM notes WHERE id=$1`, noteID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NoteRef{}, ErrNoteNotFound
	}
	return note, translate(err)
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}
