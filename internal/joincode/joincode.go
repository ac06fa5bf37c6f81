// Package joincode issues short human-shareable codes for group chats.
package joincode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

const (
	// Alphabet omits 0, O, 1 and I. Its 32 symbols make byte&31 uniform.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	Length   = 6

	defaultAttempts = 16
)

var ErrExhausted = errors.New("join code allocation exhausted")

// ExistsFunc reports whether a code is already held by a chat.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Allocator generates codes and pre-checks them against existing chats.
// The pre-check is advisory; the store's unique constraint decides at commit.
type Allocator struct {
	exists   ExistsFunc
	attempts int
	random   func([]byte) (int, error)
}

// NewAllocator builds an Allocator that tries at most attempts codes per call.
func NewAllocator(exists ExistsFunc, attempts int) *Allocator {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &Allocator{exists: exists, attempts: attempts, random: rand.Read}
}

// Generate returns a random code.
func (a *Allocator) Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := a.random(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[b&31]
	}
	return string(buf), nil
}

// Allocate returns a code no chat currently holds.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for i := 0; i < a.attempts; i++ {
		code, err := a.Generate()
		if err != nil {
			return "", err
		}
		taken, err := a.exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrExhausted
}

// Normalize upper-cases and trims user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the shape of an issued code.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
