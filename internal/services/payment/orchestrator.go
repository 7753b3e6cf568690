// Package payment implements the Payment Orchestrator, the Outbox Relay, and
// the Reconciler: the transactional-outbox pattern solving the
// dual-write problem between the relational store and the event bus, plus
// asynchronous charging against an unreliable PSP behind a circuit breaker.
package payment

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ridecore/internal/bus"
	"ridecore/internal/domain/entities"
	"ridecore/internal/domain/flags"
	"ridecore/internal/flagstore"
	"ridecore/internal/repository"
	"ridecore/internal/services/psp"
)

// TripEvent is the inbound trip-ended event that triggers Initiate.
type TripEvent struct {
	TripID        string
	RiderID       string
	TenantID      string
	Amount        entities.Money
	PaymentMethod string
}

// Orchestrator owns Payment rows. charger is the PSP
// adapter, typically *psp.BreakerPolicy wrapping a psp.Client — both satisfy
// this interface's method set, so tests can pass a bare psp.StubClient.
type Orchestrator struct {
	payments repository.PaymentRepository
	outbox   repository.OutboxRepository
	flags    flagstore.Store
	charger  psp.Client
	bus      bus.Bus
	tx       repository.TxRunner
	newID    func() string
	log      *zap.SugaredLogger
}

func NewOrchestrator(
	payments repository.PaymentRepository,
	outbox repository.OutboxRepository,
	flagStore flagstore.Store,
	charger psp.Client,
	eventBus bus.Bus,
	tx repository.TxRunner,
	newID func() string,
	log *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		payments: payments,
		outbox:   outbox,
		flags:    flagStore,
		charger:  charger,
		bus:      eventBus,
		tx:       tx,
		newID:    newID,
		log:      log,
	}
}

func outboxPayload(eventType string, p *entities.Payment) []byte {
	env := bus.Envelope{
		EventType: eventType,
		TenantID:  p.TenantID,
		Timestamp: time.Now(),
		Payload: map[string]any{
			"payment_id":     p.ID,
			"trip_id":        p.TripID,
			"amount":         p.Amount.Float64(),
			"currency":       p.Amount.Currency,
			"status":         string(p.Status),
			"psp_reference":  p.PSPReference,
			"failure_reason": p.FailureReason,
		},
	}
	data, err := json.Marshal(env)
	if err != nil {
		// Envelope only holds marshalable scalars; a failure here is a
		// programmer error, not a runtime condition to recover from.
		panic(err)
	}
	return data
}

// Initiate is idempotent on trip id: it atomically writes the Payment row
// and the outbox PAYMENT_INITIATED entry, then — unless auto_payment_charge
// is off — kicks off the async PSP charge without blocking the caller.
func (o *Orchestrator) Initiate(ctx context.Context, evt TripEvent) (*entities.Payment, error) {
	var payment, existing *entities.Payment
	err := o.tx(ctx, func(ctx context.Context) error {
		p, err := o.payments.GetByTripID(ctx, evt.TripID)
		if err != nil {
			return err
		}
		if p != nil {
			existing = p
			return nil
		}

		payment = entities.NewPayment(o.newID(), evt.TripID, evt.RiderID, evt.TenantID, evt.Amount, evt.PaymentMethod)
		if err := o.payments.Create(ctx, payment); err != nil {
			return err
		}
		entry := entities.NewOutboxEntry(o.newID(), payment.ID, payment.TenantID, entities.EventPaymentInitiated, outboxPayload(entities.EventPaymentInitiated, payment))
		return o.outbox.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	autoCharge, err := o.flags.Get(ctx, evt.TenantID, flags.AutoPaymentCharge, flags.Defaults[flags.AutoPaymentCharge])
	if err != nil {
		return nil, err
	}
	if !autoCharge {
		return payment, nil
	}

	paymentID := payment.ID
	go func() {
		// Detached from the request context: the charge must outlive the
		// handler that triggered it; Initiate never blocks on the PSP.
		if err := o.ChargeNow(context.Background(), paymentID); err != nil {
			o.log.Warnw("async psp charge failed", "payment_id", paymentID, "error", err)
		}
	}()

	return payment, nil
}

// ChargeNow runs the PSP charge for paymentID and records the outcome. It
// is exported so the Reconciler can re-trigger it synchronously for
// FAILED/stale-PENDING rows, and so tests can await the charge instead of
// racing Initiate's goroutine.
func (o *Orchestrator) ChargeNow(ctx context.Context, paymentID string) error {
	var payment *entities.Payment
	err := o.tx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = o.payments.GetByID(ctx, paymentID)
		return err
	})
	if err != nil {
		return err
	}

	result, chargeErr := o.charger.Charge(ctx, payment.RiderID, payment.Amount, payment.PaymentMethod)
	return o.tx(ctx, func(ctx context.Context) error {
		p, err := o.payments.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}

		var eventType string
		if chargeErr == nil {
			p.MarkCaptured(result.Reference)
			eventType = entities.EventPaymentCaptured
		} else {
			p.MarkFailed(chargeErr.Error())
			eventType = entities.EventPaymentFailed
		}

		if err := o.payments.Update(ctx, p); err != nil {
			return err
		}
		entry := entities.NewOutboxEntry(o.newID(), p.ID, p.TenantID, eventType, outboxPayload(eventType, p))
		return o.outbox.Create(ctx, entry)
	})
}
