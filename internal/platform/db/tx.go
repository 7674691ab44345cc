package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type contextKey string

const DBTxKey contextKey = "db_tx"

// TxBeginner is satisfied by *pgxpool.Pool and pgx.Tx.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxFromContext returns the transaction stored by WithTx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx runs fn inside a transaction. Repositories that consult
// TxFromContext participate in it automatically. The transaction is
// committed when fn returns nil and rolled back otherwise.
func WithTx(ctx context.Context, b TxBeginner, fn func(ctx context.Context) error) error {
	if b == nil {
		return fmt.Errorf("no database connection available")
	}
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
