package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

// RideRepo persists Ride rows using pgx and plain SQL, pulling the
// ambient transaction out of the context per call.
type RideRepo struct{}

func NewRideRepo() repository.RideRepository {
	return &RideRepo{}
}

var _ repository.RideRepository = (*RideRepo)(nil)

func (repo *RideRepo) Create(ctx context.Context, ride *entities.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ride (
			id, tenant_id, region_id, rider_id, driver_id, status,
			pickup_lat, pickup_lng, dest_lat, dest_lng,
			required_tier, payment_method, idempotency_key,
			attempt_count, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), $6,
			$7, $8, $9, $10,
			$11, $12, NULLIF($13, ''),
			$14, $15, $16, $17
		)
	`,
		ride.ID, ride.TenantID, ride.RegionID, ride.RiderID, ride.DriverID, ride.Status,
		ride.Pickup.Latitude, ride.Pickup.Longitude, ride.Destination.Latitude, ride.Destination.Longitude,
		ride.RequiredTier, ride.PaymentMethod, ride.IdempotencyKey,
		ride.AttemptCount, ride.Version, ride.CreatedAt, ride.UpdatedAt,
	)
	return err
}

func (repo *RideRepo) scanRide(row pgx.Row) (*entities.Ride, error) {
	var r entities.Ride
	var driverID, idempotencyKey *string
	err := row.Scan(
		&r.ID, &r.TenantID, &r.RegionID, &r.RiderID, &driverID, &r.Status,
		&r.Pickup.Latitude, &r.Pickup.Longitude, &r.Destination.Latitude, &r.Destination.Longitude,
		&r.RequiredTier, &r.PaymentMethod, &idempotencyKey,
		&r.AttemptCount, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		r.DriverID = *driverID
	}
	if idempotencyKey != nil {
		r.IdempotencyKey = *idempotencyKey
	}
	return &r, nil
}

const rideColumns = `
	id, tenant_id, region_id, rider_id, driver_id, status,
	pickup_lat, pickup_lng, dest_lat, dest_lng,
	required_tier, payment_method, idempotency_key,
	attempt_count, version, created_at, updated_at
`

func (repo *RideRepo) GetByID(ctx context.Context, id string) (*entities.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM ride WHERE id = $1`, id)
	return repo.scanRide(row)
}

func (repo *RideRepo) GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*entities.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM ride WHERE tenant_id = $1 AND idempotency_key = $2`, tenantID, key)
	ride, err := repo.scanRide(row)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	return ride, err
}

// Update guards on version: a zero-row result means another writer already
// advanced the row, surfaced to the caller as ErrOptimisticLock.
func (repo *RideRepo) Update(ctx context.Context, ride *entities.Ride, expectedVersion int64) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE ride SET
			driver_id = NULLIF($1, ''), status = $2, attempt_count = $3,
			version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6
	`, ride.DriverID, ride.Status, ride.AttemptCount, ride.UpdatedAt, ride.ID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrOptimisticLock
	}
	return nil
}

func (repo *RideRepo) ListByStatus(ctx context.Context, status entities.RideStatus, limit int) ([]*entities.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+rideColumns+` FROM ride WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entities.Ride
	for rows.Next() {
		r, err := repo.scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
