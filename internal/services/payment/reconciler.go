package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

// Reconciler runs two scheduled sweeps: a FAILED-row retry sweep and a
// stale-PENDING sweep. Both re-attempt the charge through the same
// Orchestrator.ChargeNow path the async charge itself uses, so every
// reconcile outcome goes through the real PSP adapter and breaker.
type Reconciler struct {
	payments              repository.PaymentRepository
	orchestrator          *Orchestrator
	tx                    repository.TxRunner
	failedInterval        time.Duration
	staleInterval         time.Duration
	stalePendingThreshold time.Duration
	batchSize             int
	maxRetries            int
	log                   *zap.SugaredLogger
}

func NewReconciler(
	payments repository.PaymentRepository,
	orchestrator *Orchestrator,
	tx repository.TxRunner,
	failedInterval, staleInterval, stalePendingThreshold time.Duration,
	maxRetries int,
	log *zap.SugaredLogger,
) *Reconciler {
	return &Reconciler{
		payments:              payments,
		orchestrator:          orchestrator,
		tx:                    tx,
		failedInterval:        failedInterval,
		staleInterval:         staleInterval,
		stalePendingThreshold: stalePendingThreshold,
		batchSize:             100,
		maxRetries:            maxRetries,
		log:                   log,
	}
}

// Run blocks, driving both sweeps on their own tickers until ctx is
// cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	failedTicker := time.NewTicker(r.failedInterval)
	staleTicker := time.NewTicker(r.staleInterval)
	defer failedTicker.Stop()
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-failedTicker.C:
			if err := r.SweepFailed(ctx); err != nil {
				r.log.Warnw("failed-payment reconcile sweep failed", "error", err)
			}
		case <-staleTicker.C:
			if err := r.SweepStalePending(ctx); err != nil {
				r.log.Warnw("stale-pending reconcile sweep failed", "error", err)
			}
		}
	}
}

// SweepFailed re-attempts the charge for every FAILED payment that has not
// exhausted its retry budget.
func (r *Reconciler) SweepFailed(ctx context.Context) error {
	var failed []*entities.Payment
	err := r.tx(ctx, func(ctx context.Context) error {
		var err error
		failed, err = r.payments.ListByStatus(ctx, entities.PaymentFailed, r.batchSize)
		return err
	})
	if err != nil {
		return err
	}
	for _, p := range failed {
		if p.RetryCount >= r.maxRetries {
			continue
		}
		if err := r.orchestrator.ChargeNow(ctx, p.ID); err != nil {
			r.log.Warnw("reconcile retry failed", "payment_id", p.ID, "error", err)
		}
	}
	return nil
}

// SweepStalePending re-attempts the charge for PENDING rows older than the
// stale-pending threshold — the signal the orchestrator crashed between the
// DB commit and the async charge being scheduled.
func (r *Reconciler) SweepStalePending(ctx context.Context) error {
	cutoff := time.Now().Add(-r.stalePendingThreshold).Unix()
	var stale []*entities.Payment
	err := r.tx(ctx, func(ctx context.Context) error {
		var err error
		stale, err = r.payments.ListStalePending(ctx, cutoff, r.batchSize)
		return err
	})
	if err != nil {
		return err
	}
	for _, p := range stale {
		if err := r.orchestrator.ChargeNow(ctx, p.ID); err != nil {
			r.log.Warnw("reconcile stale-pending retry failed", "payment_id", p.ID, "error", err)
		}
	}
	return nil
}
