package memory

import (
	"context"
	"time"

	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

// StreakRepo implements repositories.StreakRepository in memory.
type StreakRepo struct {
	s *Store
}

func (r *StreakRepo) Get(_ context.Context, userID string) (models.StreakRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.streaks[userID]
	if !ok {
		return models.StreakRecord{}, repositories.ErrStreakNotFound
	}
	return rec, nil
}

func (r *StreakRepo) Update(_ context.Context, userID string, fn repositories.StreakUpdate) (models.StreakRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.streaks[userID]
	if !ok {
		current = models.StreakRecord{UserID: userID}
	}
	next := fn(current, ok && current.LastActiveDate != nil)
	next.UserID = userID
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	r.s.streaks[userID] = next
	return next, nil
}
