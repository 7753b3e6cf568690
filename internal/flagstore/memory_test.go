package flagstore

import (
	"context"
	"testing"

	"ridecore/internal/domain/flags"
)

func TestGetPrefersTenantOverGlobalOverDefault(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Nothing set: the caller's default wins.
	v, err := s.Get(ctx, "tenant-a", flags.SurgePricingEnabled, true)
	if err != nil || !v {
		t.Fatalf("expected caller default true, got %v (err %v)", v, err)
	}

	// A global override beats the default.
	if err := s.Set(ctx, flags.GlobalTenant, flags.SurgePricingEnabled, false); err != nil {
		t.Fatalf("Set global: %v", err)
	}
	v, err = s.Get(ctx, "tenant-a", flags.SurgePricingEnabled, true)
	if err != nil || v {
		t.Fatalf("expected global override false, got %v (err %v)", v, err)
	}

	// A tenant override beats the global one.
	if err := s.Set(ctx, "tenant-a", flags.SurgePricingEnabled, true); err != nil {
		t.Fatalf("Set tenant: %v", err)
	}
	v, err = s.Get(ctx, "tenant-a", flags.SurgePricingEnabled, false)
	if err != nil || !v {
		t.Fatalf("expected tenant override true, got %v (err %v)", v, err)
	}
}

func TestInitDefaultsWritesOnlyMissingFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Pre-set one flag to the opposite of its default.
	if err := s.Set(ctx, "tenant-a", flags.AutoPaymentCharge, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.InitDefaults(ctx, "tenant-a"); err != nil {
		t.Fatalf("InitDefaults: %v", err)
	}

	// The explicit override must survive.
	v, err := s.Get(ctx, "tenant-a", flags.AutoPaymentCharge, true)
	if err != nil || v {
		t.Fatalf("expected pre-set override to survive InitDefaults, got %v (err %v)", v, err)
	}

	// A previously missing flag must now carry its default.
	v, err = s.Get(ctx, "tenant-a", flags.SurgePricingEnabled, false)
	if err != nil || !v {
		t.Fatalf("expected default written for missing flag, got %v (err %v)", v, err)
	}
}
