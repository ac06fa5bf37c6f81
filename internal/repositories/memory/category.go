package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

// CategoryRepo implements repositories.CategoryRepository in memory.
type CategoryRepo struct {
	s *Store
}

func (r *CategoryRepo) nameTaken(ownerID, name, excludeID string) bool {
	for _, c := range r.s.categories {
		if c.OwnerID == ownerID && c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (r *CategoryRepo) Create(_ context.Context, category models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(category.OwnerID, category.Name, category.ID) {
		return repositories.ErrCategoryNameTaken
	}
	r.s.categories[category.ID] = category
	return nil
}

func (r *CategoryRepo) Get(_ context.Context, categoryID string) (models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[categoryID]
	if !ok {
		return models.Category{}, repositories.ErrCategoryNotFound
	}
	return c, nil
}

func (r *CategoryRepo) NameTaken(_ context.Context, ownerID, name, excludeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.nameTaken(ownerID, name, excludeID), nil
}

func (r *CategoryRepo) Rename(_ context.Context, categoryID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[categoryID]
	if !ok {
		return repositories.ErrCategoryNotFound
	}
	if r.nameTaken(c.OwnerID, name, categoryID) {
		return repositories.ErrCategoryNameTaken
	}
	c.Name = name
	r.s.categories[categoryID] = c
	return nil
}

func (r *CategoryRepo) Delete(_ context.Context, categoryID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[categoryID]; !ok {
		return repositories.ErrCategoryNotFound
	}
	for _, n := range r.s.notes {
		if n.CategoryID == categoryID {
			return repositories.ErrCategoryInUse
		}
	}
	delete(r.s.categories, categoryID)
	return nil
}

// rewriteChunk applies fn to at most limit matching notes in id order.
func (r *CategoryRepo) rewriteChunk(limit int, match func(models.NoteRef) bool, fn func(*models.NoteRef)) int64 {
	ids := make([]string, 0)
	for id, n := range r.s.notes {
		if match(n) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	now := time.Now().UTC()
	for _, id := range ids {
		n := r.s.notes[id]
		fn(&n)
		n.UpdatedAt = now
		r.s.notes[id] = n
	}
	return int64(len(ids))
}

func (r *CategoryRepo) ReassignChunk(_ context.Context, categoryID string, limit int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.rewriteChunk(limit,
		func(n models.NoteRef) bool { return n.CategoryID == categoryID },
		func(n *models.NoteRef) {
			n.CategoryID = ""
			n.CategoryName = models.UncategorizedName
		}), nil
}

func (r *CategoryRepo) PropagateNameChunk(_ context.Context, categoryID, name string, limit int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.rewriteChunk(limit,
		func(n models.NoteRef) bool { return n.CategoryID == categoryID && n.CategoryName != name },
		func(n *models.NoteRef) { n.CategoryName = name }), nil
}

func (r *CategoryRepo) ListStale(_ context.Context, limit int) ([]models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stale := map[string]models.Category{}
	for _, n := range r.s.notes {
		c, ok := r.s.categories[n.CategoryID]
		if ok && n.CategoryName != c.Name {
			stale[c.ID] = c
		}
	}
	out := make([]models.Category, 0, len(stale))
	for _, c := range stale {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *CategoryRepo) ListOrphaned(_ context.Context, limit int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := map[string]struct{}{}
	for _, n := range r.s.notes {
		if n.CategoryID == "" {
			continue
		}
		if _, ok := r.s.categories[n.CategoryID]; !ok {
			seen[n.CategoryID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *CategoryRepo) UpsertNote(_ context.Context, note models.NoteRef) (models.NoteRef, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if current, ok := r.s.notes[note.ID]; ok && current.OwnerID != note.OwnerID {
		return models.NoteRef{}, repositories.ErrNoteNotFound
	}
	note.CategoryName = models.UncategorizedName
	if note.CategoryID != "" {
		c, ok := r.s.categories[note.CategoryID]
		if !ok {
			return models.NoteRef{}, repositories.ErrCategoryNotFound
		}
		note.CategoryName = c.Name
	}
	r.s.notes[note.ID] = note
	return note, nil
}

func (r *CategoryRepo) GetNote(_ context.Context, noteID string) (models.NoteRef, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notes[noteID]
	if !ok {
		return models.NoteRef{}, repositories.ErrNoteNotFound
	}
	return n, nil
}
