package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ridecore/internal/bus"
	"ridecore/internal/domain/entities"
	"ridecore/internal/flagstore"
	"ridecore/internal/repository/memory"
	"ridecore/internal/services/psp"
)

func newTestOrchestrator(t *testing.T, charger psp.Client) (*Orchestrator, *memory.PaymentRepository, *memory.OutboxRepository, *bus.MemoryBus) {
	t.Helper()
	payments := memory.NewPaymentRepository()
	outbox := memory.NewOutboxRepository()
	flagStore := flagstore.NewMemoryStore()
	// Auto-charge is off by default so tests drive ChargeNow explicitly
	// instead of racing Initiate's async goroutine.
	require.NoError(t, flagStore.Set(context.Background(), "tenant-a", "auto_payment_charge", false))
	eventBus := bus.NewMemoryBus()
	seq := 0
	newID := func() string {
		seq++
		return "pay-" + string(rune('a'+seq))
	}
	o := NewOrchestrator(payments, outbox, flagStore, charger, eventBus, memory.NoopTx, newID, zap.NewNop().Sugar())
	return o, payments, outbox, eventBus
}

func TestInitiateWritesPaymentAndOutboxAtomically(t *testing.T) {
	o, payments, outbox, _ := newTestOrchestrator(t, psp.NewStubClient(psp.NeverFail(), func() string { return "ref-1" }))
	ctx := context.Background()

	p, err := o.Initiate(ctx, TripEvent{
		TripID: "trip-1", RiderID: "usr_1", TenantID: "tenant-a",
		Amount: entities.NewMoney(20.93, "USD"), PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentPending, p.Status, "payment must be PENDING immediately after initiate")

	stored, err := payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "trip-1", stored.TripID)

	fifo, err := outbox.ListPendingFIFO(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fifo, 1)
	assert.Equal(t, entities.EventPaymentInitiated, fifo[0].EventType)
}

func TestInitiateIsIdempotentPerTrip(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(t, psp.NewStubClient(psp.NeverFail(), func() string { return "ref-1" }))
	ctx := context.Background()

	evt := TripEvent{TripID: "trip-dup", RiderID: "usr_1", TenantID: "tenant-a", Amount: entities.NewMoney(10, "USD"), PaymentMethod: "card"}
	first, err := o.Initiate(ctx, evt)
	require.NoError(t, err)
	second, err := o.Initiate(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "replay must return the same payment row")
}

func TestChargeNowCapturesOnSuccess(t *testing.T) {
	o, payments, outbox, _ := newTestOrchestrator(t, psp.NewStubClient(psp.NeverFail(), func() string { return "ref-ok" }))
	ctx := context.Background()

	p, err := o.Initiate(ctx, TripEvent{TripID: "trip-2", RiderID: "usr_2", TenantID: "tenant-a", Amount: entities.NewMoney(15, "USD"), PaymentMethod: "card"})
	require.NoError(t, err)
	require.NoError(t, o.ChargeNow(ctx, p.ID))

	stored, err := payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentCaptured, stored.Status)
	assert.Equal(t, "ref-ok", stored.PSPReference)

	fifo, err := outbox.ListPendingFIFO(ctx, 10)
	require.NoError(t, err)
	types := make([]string, 0, len(fifo))
	for _, e := range fifo {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, entities.EventPaymentCaptured)
}

func TestChargeNowMarksFailedOnPSPOutage(t *testing.T) {
	o, payments, _, _ := newTestOrchestrator(t, psp.NewStubClient(psp.AlwaysFail(), func() string { return "unused" }))
	ctx := context.Background()

	p, err := o.Initiate(ctx, TripEvent{TripID: "trip-3", RiderID: "usr_3", TenantID: "tenant-a", Amount: entities.NewMoney(15, "USD"), PaymentMethod: "card"})
	require.NoError(t, err)
	require.NoError(t, o.ChargeNow(ctx, p.ID))

	stored, err := payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
}

func TestInitiateSkipsAutoChargeWhenFlagDisabled(t *testing.T) {
	o, payments, _, _ := newTestOrchestrator(t, psp.NewStubClient(psp.AlwaysFail(), func() string { return "unused" }))
	ctx := context.Background()

	p, err := o.Initiate(ctx, TripEvent{TripID: "trip-4", RiderID: "usr_4", TenantID: "tenant-a", Amount: entities.NewMoney(15, "USD"), PaymentMethod: "card"})
	require.NoError(t, err)

	// Give a wrongly-started async goroutine a chance to run, to prove it
	// didn't.
	time.Sleep(10 * time.Millisecond)
	stored, err := payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentPending, stored.Status, "payment must stay PENDING for manual review")
}
