// Package tx carries a SQL transaction through context so stores participating
// in the same business operation share one transaction without changing their
// signatures.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// Executor is the subset of *sql.DB and *sql.Tx that stores need. Stores pick
// the transaction from context when present and fall back to their pool.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// ExecutorFrom returns the context transaction when present, else the given
// fallback (typically the store's *sql.DB).
func ExecutorFrom(ctx context.Context, fallback Executor) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return fallback
}
