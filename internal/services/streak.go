package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

// StreakService tracks consecutive days of activity per user.
type StreakService struct {
	repo     repositories.StreakRepository
	location *time.Location
	retry    RetryPolicy
	clock    Clock
	logger   zerolog.Logger
}

// NewStreakService counts calendar days in loc.
func NewStreakService(repo repositories.StreakRepository, loc *time.Location, retry RetryPolicy, clock Clock, logger zerolog.Logger) *StreakService {
	if loc == nil {
		loc = time.UTC
	}
	return &StreakService{
		repo:     repo,
		location: loc,
		retry:    retry,
		clock:    clock,
		logger:   logger.With().Str("component", "streaks").Logger(),
	}
}

// RecordActivity marks userID active today and returns the updated record.
func (s *StreakService) RecordActivity(ctx context.Context, userID string) (models.StreakRecord, error) {
	if userID == "" {
		return models.StreakRecord{}, apperr.Validation("user id is required")
	}
	now := s.clock()
	today := CalendarDay(now, s.location)

	var rec models.StreakRecord
	err := s.retry.do(ctx, "record_activity", func() error {
		var err error
		rec, err = s.repo.Update(ctx, userID, func(current models.StreakRecord, exists bool) models.StreakRecord {
			var last *time.Time
			if exists {
				last = current.LastActiveDate
			}
			return models.StreakRecord{
				UserID:         userID,
				LastActiveDate: &today,
				CurrentStreak:  NextStreak(last, current.CurrentStreak, today),
				UpdatedAt:      now.UTC(),
			}
		})
		return err
	})
	if err != nil {
		return models.StreakRecord{}, err
	}
	return rec, nil
}

// CurrentStreak returns the stored streak of userID, or 0 without a record.
func (s *StreakService) CurrentStreak(ctx context.Context, userID string) (int, error) {
	rec, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repositories.ErrStreakNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.CurrentStreak, nil
}

// NextStreak returns the streak after activity on today given the last active
// day and the streak value stored with it.
func NextStreak(last *time.Time, current int, today time.Time) int {
	if last == nil {
		return 1
	}
	lastDay := dayOf(*last)
	switch {
	case lastDay.Equal(today):
		if current < 1 {
			return 1
		}
		return current
	case lastDay.AddDate(0, 0, 1).Equal(today):
		return current + 1
	default:
		return 1
	}
}

// CalendarDay returns midnight UTC of the date t falls on in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
