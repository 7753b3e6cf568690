package dispatch

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository/memory"
)

func TestOfferTimeoutSchedulerReDispatchesExpiredOffer(t *testing.T) {
	engine, rides, offers, geoIndex, _ := newTestEngine(t)
	ctx := context.Background()
	upsertDriver(t, geoIndex, "drv_slow", "ap-south-1", entities.TierEconomy, 12.9716, 77.5946, 4.9, 0.05)
	upsertDriver(t, geoIndex, "drv_backup", "ap-south-1", entities.TierEconomy, 12.98, 77.60, 4.5, 0.1)

	summary, err := engine.CreateRide(ctx, CreateRideRequest{
		TenantID: "tenant-a", RegionID: "ap-south-1", RiderID: "usr_101",
		Pickup: entities.NewLocation(12.9716, 77.5946), Destination: entities.NewLocation(12.9352, 77.6245),
		RequiredTier: entities.TierEconomy, PaymentMethod: "card",
	}, "")
	if err != nil {
		t.Fatalf("CreateRide: %v", err)
	}

	open, err := offers.GetOpenByRide(ctx, summary.RideID)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected one open offer: %v %v", open, err)
	}
	// Force the offer into the past so the sweep treats it as expired.
	open[0].OfferedAt = time.Now().Add(-1 * time.Hour)
	if err := offers.Create(ctx, open[0]); err != nil {
		t.Fatalf("re-seed offer: %v", err)
	}

	scheduler := NewOfferTimeoutScheduler(rides, offers, memory.NoopTx, engine, 5*time.Second, zap.NewNop().Sugar())
	if err := scheduler.sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	resolved, err := offers.GetByID(ctx, open[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if resolved.Response != entities.OfferResponseTimeout {
		t.Fatalf("expected original offer resolved TIMEOUT, got %s", resolved.Response)
	}

	newOpen, err := offers.GetOpenByRide(ctx, summary.RideID)
	if err != nil || len(newOpen) != 1 {
		t.Fatalf("expected a fresh open offer after sweep: %v %v", newOpen, err)
	}
	if newOpen[0].DriverID != "drv_backup" {
		t.Fatalf("expected re-dispatch to drv_backup, got %s", newOpen[0].DriverID)
	}
}
