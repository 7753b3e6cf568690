// Package postgres implements the repository interfaces against Postgres
// via pgx. Callers open a transaction once per public operation, stash it
// in the context, and every repo call pulls it back out with
// MustTxFromContext.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// WithTx returns a context carrying tx, for repo calls made within it.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction stashed by WithTx, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// MustTxFromContext is the idiom every repo method opens with: every call
// into this package must happen inside a transaction opened by RunInTx.
func MustTxFromContext(ctx context.Context) (pgx.Tx, error) {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return nil, errors.New("postgres: no transaction in context")
	}
	return tx, nil
}

// RunInTx opens a transaction against pool, runs fn with it bound into
// ctx, and commits on success or rolls back on error/panic. This is the
// single transactional-scope boundary around each public operation's
// state-changing block.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(WithTx(ctx, tx))
	return err
}
