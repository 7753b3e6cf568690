package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

// GeoCellRepo persists the geo_cell audit row the Surge Calculator overwrites
// on every recompute.
type GeoCellRepo struct{}

func NewGeoCellRepo() repository.GeoCellRepository {
	return &GeoCellRepo{}
}

var _ repository.GeoCellRepository = (*GeoCellRepo)(nil)

const geoCellColumns = `cell_id, region_id, tenant_id, active_driver_count, pending_ride_count, surge_multiplier, computed_at`

func (repo *GeoCellRepo) Upsert(ctx context.Context, s *entities.GeoCellSnapshot) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO geo_cell (`+geoCellColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cell_id) DO UPDATE SET
			region_id = EXCLUDED.region_id,
			tenant_id = EXCLUDED.tenant_id,
			active_driver_count = EXCLUDED.active_driver_count,
			pending_ride_count = EXCLUDED.pending_ride_count,
			surge_multiplier = EXCLUDED.surge_multiplier,
			computed_at = EXCLUDED.computed_at
	`, s.CellID, s.RegionID, s.TenantID, s.ActiveDriverCount, s.PendingRideCount, s.SurgeMultiplier, s.ComputedAt)
	return err
}

func (repo *GeoCellRepo) GetByID(ctx context.Context, cellID string) (*entities.GeoCellSnapshot, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var s entities.GeoCellSnapshot
	err = tx.QueryRow(ctx, `SELECT `+geoCellColumns+` FROM geo_cell WHERE cell_id = $1`, cellID).Scan(
		&s.CellID, &s.RegionID, &s.TenantID, &s.ActiveDriverCount, &s.PendingRideCount, &s.SurgeMultiplier, &s.ComputedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
