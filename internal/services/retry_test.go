package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"groupchat-service/internal/apperr"
)

func TestRetryPolicyRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := testRetry().do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return apperr.Transient(errors.New("serialization failure"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnPermanentErrors(t *testing.T) {
	calls := 0
	err := testRetry().do(context.Background(), "op", func() error {
		calls++
		return apperr.Validation("bad input")
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := testRetry().do(context.Background(), "op", func() error {
		calls++
		return apperr.Transient(errors.New("deadlock detected"))
	})
	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.Equal(t, 4, calls)
}
