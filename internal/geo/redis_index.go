package geo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ridecore/internal/domain/entities"
)

// "drivers:{region}" holds the geospatial set, "driver:{id}" the metadata.
func regionSetKey(region string) string { return fmt.Sprintf("drivers:%s", region) }
func metadataKey(driverID string) string { return fmt.Sprintf("driver:%s", driverID) }

// RedisIndex is the production driver index: a GEO set per region plus a
// TTL'd JSON metadata blob per driver.
type RedisIndex struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

// NewRedisIndex wraps an already-connected client.
func NewRedisIndex(client *redis.Client, log *zap.SugaredLogger) *RedisIndex {
	return &RedisIndex{client: client, log: log}
}

var _ Index = (*RedisIndex)(nil)

func (r *RedisIndex) Upsert(ctx context.Context, meta *entities.DriverMetadata) error {
	prev, err := r.GetMetadata(ctx, meta.DriverID)
	if err != nil {
		return err
	}
	if prev != nil && prev.RegionID != meta.RegionID {
		if err := r.client.ZRem(ctx, regionSetKey(prev.RegionID), meta.DriverID).Err(); err != nil {
			return err
		}
	}

	if err := r.client.GeoAdd(ctx, regionSetKey(meta.RegionID), &redis.GeoLocation{
		Name:      meta.DriverID,
		Longitude: meta.Location.Longitude,
		Latitude:  meta.Location.Latitude,
	}).Err(); err != nil {
		return err
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, metadataKey(meta.DriverID), data, entities.DriverMetadataTTL).Err()
}

func (r *RedisIndex) Radius(ctx context.Context, region string, lat, lng, radiusKm float64, limit int) ([]DriverDistance, error) {
	results, err := r.client.GeoSearchLocation(ctx, regionSetKey(region), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	out := make([]DriverDistance, 0, len(results))
	for _, loc := range results {
		out = append(out, DriverDistance{DriverID: loc.Name, DistanceKm: loc.Dist})
	}
	return out, nil
}

func (r *RedisIndex) GetMetadata(ctx context.Context, driverID string) (*entities.DriverMetadata, error) {
	raw, err := r.client.Get(ctx, metadataKey(driverID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta entities.DriverMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (r *RedisIndex) SetStatus(ctx context.Context, driverID string, status entities.DriverMetadataStatus) error {
	meta, err := r.GetMetadata(ctx, driverID)
	if err != nil {
		return err
	}
	if meta == nil {
		r.log.Warnw("set status on unknown driver", "driver_id", driverID)
		return nil
	}
	meta.Status = status
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	// KeepTTL: a status flip must not reset the 30s metadata TTL.
	return r.client.Set(ctx, metadataKey(driverID), data, redis.KeepTTL).Err()
}
