package entities

import "time"

// DriverMetadataStatus is the dispatch-visible state of a driver. It lives
// only in the KV store — there is no persisted driver table in this core.
type DriverMetadataStatus string

const (
	DriverIdle        DriverMetadataStatus = "IDLE"
	DriverDispatching DriverMetadataStatus = "DISPATCHING"
	DriverOnTrip      DriverMetadataStatus = "ON_TRIP"
	DriverOffline     DriverMetadataStatus = "OFFLINE"
)

// DriverMetadataTTL is the auto-expiry window for a driver's metadata map;
// a driver not re-upserted within this window is treated as gone.
const DriverMetadataTTL = 30 * time.Second

// DriverMetadata is the per-driver map the Geo Index refreshes on every
// location update. Missing rating/decline-rate are defaulted by
// the scoring function, not here, so a partially-populated record from an
// older writer still scores sanely.
type DriverMetadata struct {
	DriverID    string               `json:"driver_id"`
	Status      DriverMetadataStatus `json:"status"`
	Tier        VehicleTier          `json:"tier"`
	Rating      float64              `json:"rating"`
	DeclineRate float64              `json:"decline_rate"`
	RegionID    string               `json:"region_id"`
	Location    Location             `json:"location"`
	LastSeen    time.Time            `json:"last_seen"`
}

// NewDriverMetadata creates a metadata record for an IDLE driver.
func NewDriverMetadata(driverID, regionID string, tier VehicleTier, loc Location, rating, declineRate float64) *DriverMetadata {
	return &DriverMetadata{
		DriverID:    driverID,
		Status:      DriverIdle,
		Tier:        tier,
		Rating:      rating,
		DeclineRate: declineRate,
		RegionID:    regionID,
		Location:    loc,
		LastSeen:    time.Now(),
	}
}

// Expired reports whether this record's TTL has lapsed as of now.
func (d *DriverMetadata) Expired(now time.Time) bool {
	return now.Sub(d.LastSeen) >= DriverMetadataTTL
}
