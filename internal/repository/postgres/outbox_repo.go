package postgres

import (
	"context"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

// OutboxRepo persists the transactional outbox table the Payment
// Orchestrator writes alongside each Payment row.
type OutboxRepo struct{}

func NewOutboxRepo() repository.OutboxRepository {
	return &OutboxRepo{}
}

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

const outboxColumns = `id, payment_id, tenant_id, event_type, payload, status, created_at, published_at, retry_count`

func (repo *OutboxRepo) Create(ctx context.Context, entry *entities.OutboxEntry) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO payment_outbox (`+outboxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.PaymentID, entry.TenantID, entry.EventType, entry.Payload, entry.Status, entry.CreatedAt, entry.PublishedAt, entry.RetryCount)
	return err
}

func scanOutbox(row interface {
	Scan(dest ...any) error
}) (*entities.OutboxEntry, error) {
	var e entities.OutboxEntry
	err := row.Scan(&e.ID, &e.PaymentID, &e.TenantID, &e.EventType, &e.Payload, &e.Status, &e.CreatedAt, &e.PublishedAt, &e.RetryCount)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListPendingFIFO is the relay's polling query: up to limit PENDING rows
// ordered by creation time ascending, served by the (status, created_at)
// index.
func (repo *OutboxRepo) ListPendingFIFO(ctx context.Context, limit int) ([]*entities.OutboxEntry, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT `+outboxColumns+` FROM payment_outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, entities.OutboxPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entities.OutboxEntry
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (repo *OutboxRepo) Update(ctx context.Context, entry *entities.OutboxEntry) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE payment_outbox SET status = $1, published_at = $2, retry_count = $3
		WHERE id = $4
	`, entry.Status, entry.PublishedAt, entry.RetryCount, entry.ID)
	return err
}
