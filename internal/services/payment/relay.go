package payment

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ridecore/internal/bus"
	"ridecore/internal/repository"
)

// OutboxRelay drains PENDING outbox rows onto the event bus in FIFO
// order. It never drops a row: a publish failure increments
// retry_count and leaves the row PENDING until retry_count reaches
// maxRetries, at which point it is marked FAILED for manual ops.
type OutboxRelay struct {
	outbox       repository.OutboxRepository
	bus          bus.Bus
	tx           repository.TxRunner
	pollInterval time.Duration
	batchSize    int
	maxRetries   int
	log          *zap.SugaredLogger
}

func NewOutboxRelay(
	outbox repository.OutboxRepository,
	eventBus bus.Bus,
	tx repository.TxRunner,
	pollInterval time.Duration,
	batchSize, maxRetries int,
	log *zap.SugaredLogger,
) *OutboxRelay {
	return &OutboxRelay{
		outbox:       outbox,
		bus:          eventBus,
		tx:           tx,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		log:          log,
	}
}

// Run blocks, sweeping every pollInterval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				r.log.Warnw("outbox relay sweep failed", "error", err)
			}
		}
	}
}

// sweep drains one FIFO batch: read PENDING rows oldest-first, publish
// each, then mark it PUBLISHED or bump its retry count.
func (r *OutboxRelay) sweep(ctx context.Context) error {
	return r.tx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.ListPendingFIFO(ctx, r.batchSize)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			var env bus.Envelope
			publishErr := json.Unmarshal(entry.Payload, &env)
			if publishErr == nil {
				publishErr = r.bus.Publish(ctx, entry.EventType, entry.PaymentID, env)
			}

			if publishErr != nil {
				entry.MarkRetryOrFail(r.maxRetries)
				r.log.Warnw("outbox publish failed, will retry", "outbox_id", entry.ID, "retry_count", entry.RetryCount, "error", publishErr)
			} else {
				entry.MarkPublished()
			}
			if err := r.outbox.Update(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}
