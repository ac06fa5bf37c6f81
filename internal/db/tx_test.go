package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestWithTxCommits(t *testing.T) {
	conn, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE chats").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), conn, nil, func(tx *sqlx.Tx) error {
		_, err := tx.Exec("UPDATE chats SET name = $1 WHERE id = $2", "team", "g1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	conn, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := WithTx(context.Background(), conn, nil, func(*sqlx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithTx(context.Background(), conn, nil, func(*sqlx.Tx) error { panic("bad") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxReportsCommitFailure(t *testing.T) {
	conn, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := WithTx(context.Background(), conn, nil, func(*sqlx.Tx) error { return nil })
	assert.EqualError(t, err, "serialization failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}
