package joincode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func never(context.Context, string) (bool, error) { return false, nil }

func TestGenerateUsesAlphabet(t *testing.T) {
	a := NewAllocator(never, 0)
	for i := 0; i < 1000; i++ {
		code, err := a.Generate()
		require.NoError(t, err)
		assert.True(t, Valid(code), code)
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
	}
}

func TestAllocateRetriesTakenCodes(t *testing.T) {
	calls := 0
	a := NewAllocator(func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	}, 5)

	code, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Len(t, code, Length)
	assert.Equal(t, 3, calls)
}

func TestAllocateGivesUp(t *testing.T) {
	a := NewAllocator(func(context.Context, string) (bool, error) { return true, nil }, 4)
	_, err := a.Allocate(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestAllocatePropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	a := NewAllocator(func(context.Context, string) (bool, error) { return false, boom }, 4)
	_, err := a.Allocate(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGenerateFailsWithoutEntropy(t *testing.T) {
	a := NewAllocator(never, 1)
	a.random = func([]byte) (int, error) { return 0, errors.New("no entropy") }
	_, err := a.Generate()
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABC234", Normalize("  abc234 "))
	assert.False(t, Valid("ABC23"))
	assert.False(t, Valid("ABC230"))
}
