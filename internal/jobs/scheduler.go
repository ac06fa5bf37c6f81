package jobs

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"
)

// Scheduler runs jobs on cron expressions.
type Scheduler struct {
	ctab    *crontab.Crontab
	jobs    []Job
	timeout time.Duration
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler whose jobs are bounded by timeout each.
// Scheduled jobs run inline on the cron goroutine.
func NewScheduler(timeout time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		ctab:    crontab.New(),
		timeout: timeout,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers job on the cron expression expr.
func (s *Scheduler) Add(expr string, job Job) error {
	if err := s.ctab.AddJob(expr, func() {
		s.runOnce(context.Background(), job)
	}); err != nil {
		return err
	}
	s.jobs = append(s.jobs, job)
	s.logger.Info().Str("job", job.Name).Str("schedule", expr).Msg("job scheduled")
	return nil
}

// RunAll executes every registered job once, in registration order.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, job := range s.jobs {
		s.runOnce(ctx, job)
	}
}

// Run blocks until ctx is done and then stops the cron loop.
func (s *Scheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	s.ctab.Shutdown()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := job.Run(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", job.Name).Msg("scheduled job failed")
	}
}
