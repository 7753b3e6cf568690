// Package repository defines the storage interfaces the core depends on.
// Interfaces live here, in the consuming layer, and are implemented by
// internal/repository/postgres (production) and internal/repository/memory
// (test fakes).
package repository

import (
	"context"
	"errors"

	"ridecore/internal/domain/entities"
)

// TxRunner opens the single transactional scope around a public
// operation's state-changing block, runs fn with it bound into ctx, and
// commits/rolls back around fn's return. The postgres adapter binds this to
// postgres.RunInTx against a pool; the memory adapter used in tests just
// calls fn(ctx) directly since its repos are already atomic per call.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// ErrOptimisticLock is returned by RideRepository.Update when the WHERE
// clause's version guard matched zero rows — the signal that another
// writer won the race.
var ErrOptimisticLock = optimisticLockError{}

type optimisticLockError struct{}

func (optimisticLockError) Error() string { return "optimistic lock conflict: version mismatch" }

// ErrNotFound is returned by RideRepository.GetByID when no row matches, in
// both the postgres and memory adapters, so callers can errors.Is against
// one value regardless of which adapter is wired in. The other GetBy*
// lookups do not return it.
var ErrNotFound = errors.New("entity not found")

// RideRepository persists Ride rows.
type RideRepository interface {
	Create(ctx context.Context, ride *entities.Ride) error
	GetByID(ctx context.Context, id string) (*entities.Ride, error)
	GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*entities.Ride, error)
	// Update persists ride with an optimistic-lock guard: the UPDATE's WHERE
	// clause must match expectedVersion. Returns ErrOptimisticLock on a
	// zero-row result and otherwise bumps ride.Version to expectedVersion+1.
	Update(ctx context.Context, ride *entities.Ride, expectedVersion int64) error
	// ListByStatus supports the Offer Timeout Scheduler's sweep over
	// DISPATCHING rides.
	ListByStatus(ctx context.Context, status entities.RideStatus, limit int) ([]*entities.Ride, error)
}

// DriverOfferRepository persists the append-only DriverOffer audit trail.
type DriverOfferRepository interface {
	Create(ctx context.Context, offer *entities.DriverOffer) error
	GetByID(ctx context.Context, id string) (*entities.DriverOffer, error)
	// GetOpenByRide returns offers for rideID with a null response.
	GetOpenByRide(ctx context.Context, rideID string) ([]*entities.DriverOffer, error)
	// Resolve sets response+responded_at, but only if the row is still open
	// (response IS NULL) — mirrors "never mutated except to set response once".
	Resolve(ctx context.Context, offerID string, response entities.OfferResponse) error
}

// PaymentRepository persists Payment rows.
type PaymentRepository interface {
	Create(ctx context.Context, payment *entities.Payment) error
	GetByID(ctx context.Context, id string) (*entities.Payment, error)
	// GetByTripID supports the unique-per-trip idempotency check.
	GetByTripID(ctx context.Context, tripID string) (*entities.Payment, error)
	Update(ctx context.Context, payment *entities.Payment) error
	ListByStatus(ctx context.Context, status entities.PaymentStatus, limit int) ([]*entities.Payment, error)
	ListStalePending(ctx context.Context, olderThanUnixSeconds int64, limit int) ([]*entities.Payment, error)
}

// OutboxRepository persists OutboxEntry rows and supports the relay's
// FIFO polling scan.
type OutboxRepository interface {
	Create(ctx context.Context, entry *entities.OutboxEntry) error
	// ListPendingFIFO returns up to limit PENDING rows ordered by creation
	// time ascending.
	ListPendingFIFO(ctx context.Context, limit int) ([]*entities.OutboxEntry, error)
	Update(ctx context.Context, entry *entities.OutboxEntry) error
}

// GeoCellRepository persists the Geo Cell Snapshot audit row the Surge
// Calculator overwrites on every recompute.
type GeoCellRepository interface {
	Upsert(ctx context.Context, snapshot *entities.GeoCellSnapshot) error
	GetByID(ctx context.Context, cellID string) (*entities.GeoCellSnapshot, error)
}
