package geo

import (
	"context"

	"ridecore/internal/domain/entities"
)

// DriverDistance pairs a driver id with its distance from a query point,
// ascending order being the index's natural result order.
type DriverDistance struct {
	DriverID   string
	DistanceKm float64
}

// Index is a region-scoped geospatial set plus a per-driver metadata map
// with a 30s TTL. Implementations: a Redis-backed adapter for production,
// and an in-memory fake for tests.
type Index interface {
	// Upsert is idempotent; last-write-wins and resets the metadata TTL. If
	// the driver was previously in a different region, the old region's
	// entry is removed so regions never cross-pollute.
	Upsert(ctx context.Context, meta *entities.DriverMetadata) error

	// Radius returns (driver id, distance_km) pairs within radiusKm of
	// (lat, lng) in the given region, ascending by distance, capped at limit.
	Radius(ctx context.Context, region string, lat, lng, radiusKm float64, limit int) ([]DriverDistance, error)

	// GetMetadata returns nil, nil if the driver is missing or its TTL expired.
	GetMetadata(ctx context.Context, driverID string) (*entities.DriverMetadata, error)

	// SetStatus partially updates the metadata map without touching its TTL.
	SetStatus(ctx context.Context, driverID string, status entities.DriverMetadataStatus) error
}
