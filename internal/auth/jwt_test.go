package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue(Identity{UserID: "u1", Name: "Ann", Email: "ann@example.com"}, time.Minute)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Name: "Ann", Email: "ann@example.com"}, id)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("one").Issue(Identity{UserID: "u1"}, time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("two").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue(Identity{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue(Identity{Name: "nobody"}, time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewVerifier("secret").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
