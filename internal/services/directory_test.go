package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/models"
)

func TestDirectoryLookups(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	_, err := env.directory.Upsert(ctx, "u1", "Alice Smith", "Alice@Example.com")
	require.NoError(t, err)
	_, err = env.directory.Upsert(ctx, "u2", "Alan Turing", "alan@example.com")
	require.NoError(t, err)

	entry, err := env.directory.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", entry.UserID)

	found, err := env.directory.SearchByNamePrefix(ctx, "al", 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = env.directory.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.directory.Upsert(ctx, " ", "x", "y")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDisplayNameFallsBackToUnknown(t *testing.T) {
	env := newTestEnv(8)
	ctx := context.Background()

	assert.Equal(t, models.UnknownDisplayName, env.directory.DisplayName(ctx, "ghost"))

	_, err := env.directory.Upsert(ctx, "u1", "Alice", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice", env.directory.DisplayName(ctx, "u1"))
}
