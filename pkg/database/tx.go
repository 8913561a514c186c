package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxAttempts сколько раз транзакция запускается при конфликте сериализации
const TxAttempts = 3

// SQLSTATE, после которых транзакцию можно безопасно повторить
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// TxFunc функция, выполняемая в транзакции; может быть вызвана повторно
type TxFunc func(tx pgx.Tx) error

// WithTransaction выполняет fn в транзакции и повторяет её при конфликте сериализации.
// Откат выполняется при ошибке или панике.
func WithTransaction(ctx context.Context, db DB, fn TxFunc) error {
	var err error
	for attempt := 1; attempt <= TxAttempts; attempt++ {
		if err = runTx(ctx, db, fn); !Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("transaction aborted after %d attempts: %w", TxAttempts, err)
}

// Retryable сообщает, что ошибка вызвана конфликтом параллельных транзакций
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

func runTx(ctx context.Context, db DB, fn TxFunc) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx) //nolint:errcheck // паника важнее ошибки отката
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		// после отмены контекста драйвер уже закрыл транзакцию
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
