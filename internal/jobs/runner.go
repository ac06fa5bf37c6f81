// Package jobs runs background work on a bounded queue and on cron schedules.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"groupchat-service/internal/observability"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("job runner stopped")
)

// Job is a named unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes enqueued jobs on a fixed set of workers.
type Runner struct {
	queue   chan Job
	workers int
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner holding at most queueSize pending jobs.
func NewRunner(queueSize, workers int, timeout time.Duration, logger zerolog.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		queue:   make(chan Job, queueSize),
		workers: workers,
		timeout: timeout,
		logger:  logger.With().Str("component", "jobs").Logger(),
	}
}

// Enqueue schedules job without blocking.
func (r *Runner) Enqueue(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	select {
	case r.queue <- job:
		observability.IncJob(job.Name, "enqueued")
		return nil
	default:
		observability.IncJob(job.Name, "rejected")
		return ErrQueueFull
	}
}

// Start launches the workers. Jobs run with a context derived from ctx.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for job := range r.queue {
				r.run(ctx, job)
			}
		}()
	}
}

// Stop rejects new jobs, drains the queue and waits for the workers.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, job Job) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			observability.IncJob(job.Name, "panic")
			r.logger.Error().Str("job", job.Name).Interface("panic", p).Msg("job panicked")
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		observability.IncJob(job.Name, "failed")
		r.logger.Error().Err(err).Str("job", job.Name).Msg("job failed")
		return
	}
	observability.IncJob(job.Name, "succeeded")
	r.logger.Debug().Str("job", job.Name).Dur("took", time.Since(start)).Msg("job done")
}
