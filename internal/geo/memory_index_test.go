package geo

import (
	"context"
	"testing"

	"ridecore/internal/domain/entities"
)

func driverAt(id, region string, lat, lng float64) *entities.DriverMetadata {
	return entities.NewDriverMetadata(id, region, entities.TierEconomy, entities.NewLocation(lat, lng), 4.5, 0.1)
}

func TestMemoryIndex_UpsertAndGetMetadata(t *testing.T) {
	idx := NewMemoryIndex(6)
	ctx := context.Background()

	if err := idx.Upsert(ctx, driverAt("drv-1", "ap-south-1", 37.7749, -122.4194)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	meta, err := idx.GetMetadata(ctx, "drv-1")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta == nil {
		t.Fatal("expected metadata, got nil")
	}
	if meta.Status != entities.DriverIdle {
		t.Errorf("expected IDLE status, got %s", meta.Status)
	}
}

func TestMemoryIndex_RegionsNeverCrossPollute(t *testing.T) {
	idx := NewMemoryIndex(6)
	ctx := context.Background()

	_ = idx.Upsert(ctx, driverAt("drv-1", "region-a", 37.7749, -122.4194))
	_ = idx.Upsert(ctx, driverAt("drv-2", "region-b", 37.7749, -122.4194))

	resultsA, err := idx.Radius(ctx, "region-a", 37.7749, -122.4194, 5.0, 50)
	if err != nil {
		t.Fatalf("Radius: %v", err)
	}
	if len(resultsA) != 1 || resultsA[0].DriverID != "drv-1" {
		t.Fatalf("expected only drv-1 in region-a, got %+v", resultsA)
	}

	resultsB, err := idx.Radius(ctx, "region-b", 37.7749, -122.4194, 5.0, 50)
	if err != nil {
		t.Fatalf("Radius: %v", err)
	}
	if len(resultsB) != 1 || resultsB[0].DriverID != "drv-2" {
		t.Fatalf("expected only drv-2 in region-b, got %+v", resultsB)
	}
}

func TestMemoryIndex_RadiusSortedAscendingAndFiltered(t *testing.T) {
	idx := NewMemoryIndex(6)
	ctx := context.Background()

	_ = idx.Upsert(ctx, driverAt("near", "ap-south-1", 12.9716, 77.5946))
	_ = idx.Upsert(ctx, driverAt("far", "ap-south-1", 12.9352, 77.6245))
	_ = idx.Upsert(ctx, driverAt("too-far", "ap-south-1", 40.0, 70.0))

	results, err := idx.Radius(ctx, "ap-south-1", 12.9716, 77.5946, 10.0, 50)
	if err != nil {
		t.Fatalf("Radius: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 drivers within radius, got %d (%+v)", len(results), results)
	}
	if results[0].DriverID != "near" {
		t.Errorf("expected nearest driver first, got %s", results[0].DriverID)
	}
	if results[0].DistanceKm > results[1].DistanceKm {
		t.Error("expected ascending distance order")
	}
}

func TestMemoryIndex_SetStatusDoesNotRemoveDriver(t *testing.T) {
	idx := NewMemoryIndex(6)
	ctx := context.Background()

	_ = idx.Upsert(ctx, driverAt("drv-1", "ap-south-1", 12.9716, 77.5946))
	if err := idx.SetStatus(ctx, "drv-1", entities.DriverDispatching); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	meta, _ := idx.GetMetadata(ctx, "drv-1")
	if meta.Status != entities.DriverDispatching {
		t.Errorf("expected DISPATCHING, got %s", meta.Status)
	}
}

func TestMemoryIndex_MovingDriverUpdatesRegion(t *testing.T) {
	idx := NewMemoryIndex(6)
	ctx := context.Background()

	_ = idx.Upsert(ctx, driverAt("drv-1", "region-a", 12.9716, 77.5946))
	_ = idx.Upsert(ctx, driverAt("drv-1", "region-b", 12.9716, 77.5946))

	resultsA, _ := idx.Radius(ctx, "region-a", 12.9716, 77.5946, 5.0, 50)
	if len(resultsA) != 0 {
		t.Errorf("expected driver removed from region-a after move, got %+v", resultsA)
	}

	resultsB, _ := idx.Radius(ctx, "region-b", 12.9716, 77.5946, 5.0, 50)
	if len(resultsB) != 1 {
		t.Errorf("expected driver present in region-b, got %+v", resultsB)
	}
}
