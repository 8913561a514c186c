package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redistrict/pkg/apperror"
	"redistrict/pkg/config"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestWithTransaction_Commit(t *testing.T) {
	mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO plan_runs").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := WithTransaction(ctx, mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "INSERT INTO plan_runs (id) VALUES ($1)", "run-1")
		return err
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	mock := newMock(t)
	expectedErr := errors.New("db error")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTransaction(context.Background(), mock, func(tx pgx.Tx) error {
		return expectedErr
	})

	assert.ErrorIs(t, err, expectedErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackFailure(t *testing.T) {
	mock := newMock(t)
	expectedErr := errors.New("db error")
	rbErr := errors.New("connection lost")

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(rbErr)

	err := WithTransaction(context.Background(), mock, func(tx pgx.Tx) error {
		return expectedErr
	})

	assert.ErrorIs(t, err, expectedErr)
	assert.ErrorIs(t, err, rbErr)
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithTransaction(context.Background(), mock, func(tx pgx.Tx) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_BeginError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := WithTransaction(context.Background(), mock, func(tx pgx.Tx) error {
		called = true
		return nil
	})

	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.False(t, called)
}

func TestWithTransaction_RetriesSerializationFailure(t *testing.T) {
	mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := WithTransaction(ctx, mock, func(tx pgx.Tx) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RetriesExhausted(t *testing.T) {
	mock := newMock(t)

	for range TxAttempts {
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	}

	calls := 0
	err := WithTransaction(context.Background(), mock, func(tx pgx.Tx) error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "aborted after 3 attempts")
	assert.True(t, Retryable(err))
	assert.Equal(t, TxAttempts, calls)
}

func TestWithTransaction_CommitError(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := WithTransaction(context.Background(), mock, func(tx pgx.Tx) error {
		return nil
	})

	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.False(t, Retryable(err))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"wrapped deadlock", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40P01"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestPoolConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:            "db.local",
		Port:            5433,
		Database:        "redistrict",
		Username:        "planner",
		Password:        "secret",
		SSLMode:         "disable",
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnectTimeout:  3 * time.Second,
	}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "db.local", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "redistrict", pc.ConnConfig.Database)
	assert.Equal(t, "planner", pc.ConnConfig.User)
	assert.Equal(t, int32(8), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 5*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
}

func TestPoolConfig_DefaultTimeout(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{
		Host: "localhost", Port: 5432, Database: "db", Username: "u", SSLMode: "disable",
	})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
}

func TestPoolConfig_Invalid(t *testing.T) {
	_, err := PoolConfig(&config.DatabaseConfig{
		Host: "localhost", Port: 5432, Database: "db", Username: "u", SSLMode: "bogus",
	})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidConfig), "got %v", err)
}
