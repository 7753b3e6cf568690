package entities

import "testing"

func newTestRide() *Ride {
	return NewRide("ride-1", "tenant-a", "ap-south-1", "usr_1",
		NewLocation(12.9716, 77.5946), NewLocation(12.9352, 77.6245),
		TierEconomy, "card", "ik-1")
}

func TestRideWalksTheFullLifecycle(t *testing.T) {
	r := newTestRide()
	path := []RideStatus{
		RideStatusDispatching,
		RideStatusAccepted,
		RideStatusDriverArrived,
		RideStatusInProgress,
		RideStatusCompleted,
	}
	for _, next := range path {
		if err := r.TransitionTo(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if !r.IsTerminal() {
		t.Fatalf("expected COMPLETED to be terminal")
	}
}

func TestRideRejectsSkippedTransitions(t *testing.T) {
	r := newTestRide()
	if err := r.TransitionTo(RideStatusAccepted); err == nil {
		t.Fatalf("expected PENDING→ACCEPTED to be rejected")
	}
	if err := r.TransitionTo(RideStatusInProgress); err == nil {
		t.Fatalf("expected PENDING→IN_PROGRESS to be rejected")
	}
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	for _, terminal := range []RideStatus{RideStatusCompleted, RideStatusCancelled, RideStatusNoDriverFound} {
		r := newTestRide()
		r.Status = terminal
		for _, next := range []RideStatus{RideStatusPending, RideStatusDispatching, RideStatusAccepted, RideStatusCancelled} {
			if r.CanTransitionTo(next) {
				t.Errorf("terminal %s must not transition to %s", terminal, next)
			}
		}
		if !r.IsTerminal() {
			t.Errorf("expected %s to report terminal", terminal)
		}
	}
}

func TestRedispatchStaysInDispatching(t *testing.T) {
	r := newTestRide()
	if err := r.TransitionTo(RideStatusDispatching); err != nil {
		t.Fatalf("transition: %v", err)
	}
	// A retry offer keeps the ride in DISPATCHING; the self-loop is legal.
	if err := r.TransitionTo(RideStatusDispatching); err != nil {
		t.Fatalf("expected DISPATCHING self-transition to be legal: %v", err)
	}
}

func TestTierRankOrdering(t *testing.T) {
	if TierEconomy.Rank() >= TierComfort.Rank() || TierComfort.Rank() >= TierXL.Rank() {
		t.Fatalf("expected ECONOMY < COMFORT < XL ranks")
	}
	if VehicleTier("HOVERCRAFT").Rank() != TierEconomy.Rank() {
		t.Fatalf("expected unknown tiers to rank lowest")
	}
}
