package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrConflict marks a transaction that lost a serialization race and may be retried.
	ErrConflict        = errors.New("db: serialization conflict")
	ErrUniqueViolation = errors.New("db: unique violation")
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type txKey struct{}

// TxManager runs units of work inside a single transaction carried in the context.
type TxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// DoSerializable runs fn in a SERIALIZABLE transaction. A nested call joins the
// outer transaction. Any error from fn rolls back every statement fn issued.
func (m *TxManager) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", Classify(err))
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return Classify(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", Classify(err))
	}
	return nil
}

// Executor returns the transaction bound to ctx, or fallback when there is none.
func Executor(ctx context.Context, fallback Querier) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return fallback
}

// Classify tags retryable and constraint errors from postgres so callers can use errors.Is.
// The original error stays in the chain, so typed errors wrapping the driver error survive.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s: %w", ErrUniqueViolation, pqErr.Constraint, err)
	}
	return err
}
