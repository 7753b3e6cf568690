package memory

import (
	"context"

	"ridecore/internal/repository"
)

// NoopTx is the repository.TxRunner used in tests against the in-memory
// repos: each repo call is already atomic under its own mutex, so there is
// no transaction to open — fn just runs with the context unchanged.
func NoopTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ repository.TxRunner = NoopTx
