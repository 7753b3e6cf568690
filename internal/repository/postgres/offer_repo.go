package postgres

import (
	"context"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

// DriverOfferRepo persists the append-only driver_offer table.
type DriverOfferRepo struct{}

func NewDriverOfferRepo() repository.DriverOfferRepository {
	return &DriverOfferRepo{}
}

var _ repository.DriverOfferRepository = (*DriverOfferRepo)(nil)

const offerColumns = `id, ride_id, driver_id, attempt_number, offered_at, responded_at, ttl_seconds, response`

func (repo *DriverOfferRepo) Create(ctx context.Context, offer *entities.DriverOffer) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO driver_offer (`+offerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`, offer.ID, offer.RideID, offer.DriverID, offer.AttemptNumber, offer.OfferedAt, offer.RespondedAt, offer.TTLSeconds, offer.Response)
	return err
}

func scanOffer(row interface {
	Scan(dest ...any) error
}) (*entities.DriverOffer, error) {
	var o entities.DriverOffer
	var response *string
	err := row.Scan(&o.ID, &o.RideID, &o.DriverID, &o.AttemptNumber, &o.OfferedAt, &o.RespondedAt, &o.TTLSeconds, &response)
	if err != nil {
		return nil, err
	}
	if response != nil {
		o.Response = entities.OfferResponse(*response)
	}
	return &o, nil
}

func (repo *DriverOfferRepo) GetByID(ctx context.Context, id string) (*entities.DriverOffer, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanOffer(tx.QueryRow(ctx, `SELECT `+offerColumns+` FROM driver_offer WHERE id = $1`, id))
}

func (repo *DriverOfferRepo) GetOpenByRide(ctx context.Context, rideID string) ([]*entities.DriverOffer, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+offerColumns+` FROM driver_offer WHERE ride_id = $1 AND response IS NULL`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entities.DriverOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Resolve's WHERE clause includes "response IS NULL" so a concurrent resolve
// of the same offer is a no-op for the loser, matching the append-only
// "never mutated except to set response once" invariant.
func (repo *DriverOfferRepo) Resolve(ctx context.Context, offerID string, response entities.OfferResponse) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE driver_offer SET response = $1, responded_at = now()
		WHERE id = $2 AND response IS NULL
	`, response, offerID)
	return err
}
