package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var (
	ErrAlreadyInTx = errors.New("already executing in existing db tx")
	ErrNotInTx     = errors.New("not executing in existing db tx")
)

type txContextKey struct{}

// txState is the transaction a context is bound to, along with the isolation
// it was opened at.
type txState struct {
	tx        *sqlx.Tx
	isolation sql.IsolationLevel
}

func normalizeIsolation(isolation sql.IsolationLevel) sql.IsolationLevel {
	if isolation == sql.LevelDefault {
		return sql.LevelReadCommitted
	}
	return isolation
}

// ExecuteTxWithinCtx opens a transaction and binds it to the context passed to
// fn. Store calls made with that context through ExecuteInTx join it. The
// transaction commits if fn returns nil and rolls back otherwise.
func ExecuteTxWithinCtx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(context.Context) error) error {
	if IsInTx(ctx) {
		return ErrAlreadyInTx
	}

	isolation = normalizeIsolation(isolation)
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, txContextKey{}, &txState{tx: tx, isolation: isolation})
	return finish(tx, fn(ctx))
}

// ExecuteInTx runs fn in the transaction bound to ctx, if any, leaving commit
// to its owner. Otherwise fn runs in a new transaction that is committed or
// rolled back here.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	isolation = normalizeIsolation(isolation)

	state, err := txFromCtx(ctx)
	switch err {
	case nil:
		if state.isolation < isolation {
			return errors.New("current tx doesn't meet isolation level requirements")
		}
		return fn(state.tx)
	case ErrNotInTx:
	default:
		return err
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}
	return finish(tx, fn(tx))
}

// IsInTx reports whether ctx carries a transaction started by ExecuteTxWithinCtx.
func IsInTx(ctx context.Context) bool {
	_, err := txFromCtx(ctx)
	return err == nil
}

func txFromCtx(ctx context.Context) (*txState, error) {
	val := ctx.Value(txContextKey{})
	if val == nil {
		return nil, ErrNotInTx
	}
	state, ok := val.(*txState)
	if !ok {
		return nil, errors.New("invalid type for tx")
	}
	return state, nil
}

// finish commits on success. Rollback always runs on failure so the
// connection returns to the pool.
func finish(tx *sqlx.Tx, err error) error {
	if err == nil {
		return tx.Commit()
	}
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		return errors.Wrapf(rollbackErr, "failed to rollback transaction after: %v", err)
	}
	return err
}
