package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "consentry/pkg/domain-errors"
)

// defaultTxTimeout bounds a business transaction so a stuck store cannot hold
// locks indefinitely.
const defaultTxTimeout = 5 * time.Second

// Runner provides a transactional boundary for a business operation. Stores
// invoked inside fn pick the transaction from the context. The in-memory
// implementation degrades to running fn directly.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs fn inside a database transaction attached to the context.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = dbtx.Rollback()
	}()

	if err := fn(WithTx(ctx, dbtx)); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}

// NoopRunner satisfies Runner for in-memory stores, which take their own
// locks. fn runs on the caller's context.
type NoopRunner struct{}

func (NoopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}
