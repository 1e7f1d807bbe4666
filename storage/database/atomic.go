package database

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// pq error codes worth special-casing.
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// TrapError maps low-level store failures to behavioral error kinds:
// unique violations to Conflict, deadlocks and serialization failures to a
// retryable StoreUnavailable. Anything else is wrapped as-is.
func TrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return core.NewConflictError(pqErr.Detail)
		case pqSerializationFailure, pqDeadlockDetected:
			return core.NewStoreUnavailableError(msg, true /* retryable */)
		}
	}
	if errors.Cause(err) == context.DeadlineExceeded {
		return core.NewStoreUnavailableError(msg)
	}
	return errors.Wrap(err, msg)
}

// atomic implements core.Atomic on *sql.DB.
type atomic struct {
	db *sql.DB
}

var _ core.Atomic = (*atomic)(nil) // interface compliance check

func NewAtomic(db *sql.DB) *atomic {
	return &atomic{db: db}
}

// RunInTx runs fn in a transaction, rolling back on error or panic. A
// retryable failure (deadlock, serialization conflict) is retried once.
func (a *atomic) RunInTx(ctx context.Context, serializable bool, fn func(exec core.DBExecutor) error) error {
	err := a.runOnce(ctx, serializable, fn)
	if err != nil && core.IsRetryable(err) {
		err = a.runOnce(ctx, serializable, fn)
	}
	return err
}

func (a *atomic) runOnce(ctx context.Context, serializable bool, fn func(exec core.DBExecutor) error) (err error) {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	if serializable {
		opts.Isolation = sql.LevelSerializable
	}
	tx, err := a.db.BeginTx(ctx, opts)
	if err != nil {
		return TrapError(err, "beginning transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return TrapError(err, "running transaction")
	}
	if err = tx.Commit(); err != nil {
		_ = tx.Rollback()
		return TrapError(err, "committing transaction")
	}
	return nil
}
