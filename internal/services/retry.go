// Package services implements the chat domain on top of the repositories.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/observability"
)

// Clock returns the current time. Tests replace it to control timestamps.
type Clock func() time.Time

// RetryPolicy bounds how often transient store failures are retried.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries five times starting at 20ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, InitialInterval: 20 * time.Millisecond, MaxInterval: time.Second}
}

// do runs fn until it succeeds, fails with a non-transient error or the
// policy is exhausted. The last error is returned unchanged.
func (p RetryPolicy) do(ctx context.Context, operation string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		if attempt > 0 {
			observability.IncStoreRetry(operation)
		}
		attempt++
		err := fn()
		if err != nil && !errors.Is(err, apperr.ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx))
}
