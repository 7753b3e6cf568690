// Package memory provides in-process fakes of the repository interfaces
// for tests: a struct guarded by sync.RWMutex behind the same interface the
// postgres adapter implements.
package memory

import (
	"context"
	"sync"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

// ErrRideNotFound is an alias of repository.ErrNotFound so callers can
// errors.Is against one sentinel regardless of which adapter is wired in.
var ErrRideNotFound = repository.ErrNotFound

// RideRepository is an in-memory RideRepository with the same optimistic-lock
// semantics as the postgres adapter: Update fails with ErrOptimisticLock if
// expectedVersion no longer matches the stored row.
type RideRepository struct {
	mu    sync.RWMutex
	rides map[string]*entities.Ride
	// byIdempotency indexes tenantID+key -> rideID, enforcing invariant (a)
	// "exactly one row per non-null idempotency key per tenant".
	byIdempotency map[string]string
}

func NewRideRepository() *RideRepository {
	return &RideRepository{
		rides:         make(map[string]*entities.Ride),
		byIdempotency: make(map[string]string),
	}
}

var _ repository.RideRepository = (*RideRepository)(nil)

func idemKey(tenantID, key string) string { return tenantID + "|" + key }

func (r *RideRepository) Create(_ context.Context, ride *entities.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *ride
	r.rides[ride.ID] = &clone
	if ride.IdempotencyKey != "" {
		r.byIdempotency[idemKey(ride.TenantID, ride.IdempotencyKey)] = ride.ID
	}
	return nil
}

func (r *RideRepository) GetByID(_ context.Context, id string) (*entities.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ride, ok := r.rides[id]
	if !ok {
		return nil, ErrRideNotFound
	}
	clone := *ride
	return &clone, nil
}

func (r *RideRepository) GetByIdempotencyKey(_ context.Context, tenantID, key string) (*entities.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byIdempotency[idemKey(tenantID, key)]
	if !ok {
		return nil, nil
	}
	clone := *r.rides[id]
	return &clone, nil
}

func (r *RideRepository) Update(_ context.Context, ride *entities.Ride, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rides[ride.ID]
	if !ok {
		return ErrRideNotFound
	}
	if existing.Version != expectedVersion {
		return repository.ErrOptimisticLock
	}

	clone := *ride
	clone.Version = expectedVersion + 1
	r.rides[ride.ID] = &clone
	return nil
}

func (r *RideRepository) ListByStatus(_ context.Context, status entities.RideStatus, limit int) ([]*entities.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Ride
	for _, ride := range r.rides {
		if ride.Status != status {
			continue
		}
		clone := *ride
		out = append(out, &clone)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
