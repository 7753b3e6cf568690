package entities

import (
	"errors"
	"time"
)

// RideStatus is the ride lifecycle state. Terminal states never transition out.
type RideStatus string

const (
	RideStatusPending       RideStatus = "PENDING"
	RideStatusDispatching   RideStatus = "DISPATCHING"
	RideStatusAccepted      RideStatus = "ACCEPTED"
	RideStatusDriverArrived RideStatus = "DRIVER_ARRIVED"
	RideStatusInProgress    RideStatus = "IN_PROGRESS"
	RideStatusCompleted     RideStatus = "COMPLETED"
	RideStatusCancelled     RideStatus = "CANCELLED"
	RideStatusNoDriverFound RideStatus = "NO_DRIVER_FOUND"
)

// validTransitions is the ride state machine. Terminal states {COMPLETED,
// CANCELLED, NO_DRIVER_FOUND} map to an empty slice — absorbing states.
var validTransitions = map[RideStatus][]RideStatus{
	RideStatusPending:       {RideStatusDispatching, RideStatusCancelled, RideStatusNoDriverFound},
	RideStatusDispatching:   {RideStatusDispatching, RideStatusAccepted, RideStatusNoDriverFound, RideStatusCancelled},
	RideStatusAccepted:      {RideStatusDriverArrived, RideStatusCancelled},
	RideStatusDriverArrived: {RideStatusInProgress, RideStatusCancelled},
	RideStatusInProgress:    {RideStatusCompleted, RideStatusCancelled},
	RideStatusCompleted:     {},
	RideStatusCancelled:     {},
	RideStatusNoDriverFound: {},
}

// VehicleTier ranks requested/offered vehicle classes. Rank is compared with
// >=, so a driver registered for a higher tier can serve a lower-tier request.
type VehicleTier string

const (
	TierEconomy VehicleTier = "ECONOMY"
	TierComfort VehicleTier = "COMFORT"
	TierXL      VehicleTier = "XL"
)

var tierRank = map[VehicleTier]int{
	TierEconomy: 0,
	TierComfort: 1,
	TierXL:      2,
}

// Rank returns the tier's position in the ordering used for compatibility
// checks (driver_tier.rank >= required_tier.rank). Unknown tiers rank lowest.
func (t VehicleTier) Rank() int {
	return tierRank[t]
}

// Ride is the dispatch request row. DriverID is empty until
// the ride reaches ACCEPTED; Version is the optimistic-lock counter used by
// Accept to resolve the double-accept race.
type Ride struct {
	ID             string
	TenantID       string
	RegionID       string
	RiderID        string
	DriverID       string
	Status         RideStatus
	Pickup         Location
	Destination    Location
	RequiredTier   VehicleTier
	PaymentMethod  string
	IdempotencyKey string
	AttemptCount   int
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewRide constructs a ride at PENDING with version 0 and zero attempts.
func NewRide(id, tenantID, regionID, riderID string, pickup, destination Location, tier VehicleTier, paymentMethod, idempotencyKey string) *Ride {
	now := time.Now()
	return &Ride{
		ID:             id,
		TenantID:       tenantID,
		RegionID:       regionID,
		RiderID:        riderID,
		Status:         RideStatusPending,
		Pickup:         pickup,
		Destination:    destination,
		RequiredTier:   tier,
		PaymentMethod:  paymentMethod,
		IdempotencyKey: idempotencyKey,
		Version:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CanTransitionTo reports whether newStatus is reachable from the current status.
func (r *Ride) CanTransitionTo(newStatus RideStatus) bool {
	allowed, ok := validTransitions[r.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo moves the ride to newStatus, bumping UpdatedAt. It does not
// touch Version — callers persisting the transition are responsible for the
// optimistic-lock increment (the entity has no storage awareness).
func (r *Ride) TransitionTo(newStatus RideStatus) error {
	if !r.CanTransitionTo(newStatus) {
		return errors.New("invalid ride transition from " + string(r.Status) + " to " + string(newStatus))
	}
	r.Status = newStatus
	r.UpdatedAt = time.Now()
	return nil
}

// IsTerminal reports whether the ride can no longer transition.
func (r *Ride) IsTerminal() bool {
	allowed, ok := validTransitions[r.Status]
	return ok && len(allowed) == 0
}

// AssignDriver records the winning driver. Invariant (c): callers must only
// call this alongside a transition into ACCEPTED.
func (r *Ride) AssignDriver(driverID string) {
	r.DriverID = driverID
	r.UpdatedAt = time.Now()
}
