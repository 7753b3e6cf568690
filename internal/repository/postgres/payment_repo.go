package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

// PaymentRepo persists Payment rows. The unique index on trip_id
// is what actually enforces "at most one payment per trip id" — Create just
// surfaces the constraint violation, it never pre-checks with a lookup.
type PaymentRepo struct{}

func NewPaymentRepo() repository.PaymentRepository {
	return &PaymentRepo{}
}

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

const paymentColumns = `
	id, trip_id, rider_id, tenant_id, amount_minor, currency, payment_method,
	psp_reference, status, failure_reason, retry_count, created_at, updated_at
`

func (repo *PaymentRepo) Create(ctx context.Context, p *entities.Payment) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO payment (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13)
	`,
		p.ID, p.TripID, p.RiderID, p.TenantID, p.Amount.MinorUnits, p.Amount.Currency, p.PaymentMethod,
		p.PSPReference, p.Status, p.FailureReason, p.RetryCount, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func scanPayment(row interface {
	Scan(dest ...any) error
}) (*entities.Payment, error) {
	var p entities.Payment
	var pspReference *string
	err := row.Scan(
		&p.ID, &p.TripID, &p.RiderID, &p.TenantID, &p.Amount.MinorUnits, &p.Amount.Currency, &p.PaymentMethod,
		&pspReference, &p.Status, &p.FailureReason, &p.RetryCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pspReference != nil {
		p.PSPReference = *pspReference
	}
	return &p, nil
}

func (repo *PaymentRepo) GetByID(ctx context.Context, id string) (*entities.Payment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment WHERE id = $1`, id))
}

func (repo *PaymentRepo) GetByTripID(ctx context.Context, tripID string) (*entities.Payment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment WHERE trip_id = $1`, tripID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (repo *PaymentRepo) Update(ctx context.Context, p *entities.Payment) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE payment SET
			psp_reference = NULLIF($1, ''), status = $2, failure_reason = $3,
			retry_count = $4, updated_at = $5
		WHERE id = $6
	`, p.PSPReference, p.Status, p.FailureReason, p.RetryCount, p.UpdatedAt, p.ID)
	return err
}

func (repo *PaymentRepo) ListByStatus(ctx context.Context, status entities.PaymentStatus, limit int) ([]*entities.Payment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+paymentColumns+` FROM payment WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (repo *PaymentRepo) ListStalePending(ctx context.Context, olderThanUnixSeconds int64, limit int) ([]*entities.Payment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := time.Unix(olderThanUnixSeconds, 0)
	rows, err := tx.Query(ctx, `SELECT `+paymentColumns+` FROM payment WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3`, entities.PaymentPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func scanPayments(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*entities.Payment, error) {
	var out []*entities.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
