package geo

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"ridecore/internal/domain/entities"
)

// MemoryIndex is an in-process fake of Index for tests — no Redis
// required. Geohash-bucketed nested maps guarded by sync.RWMutex, speaking
// the same region-scoped contract as the Redis adapter, including the 30s
// metadata TTL and region isolation.
type MemoryIndex struct {
	mu        sync.RWMutex
	precision int
	// region -> geohash -> driverID -> metadata
	byRegion map[string]map[string]map[string]*entities.DriverMetadata
	byDriver map[string]*entities.DriverMetadata
}

// NewMemoryIndex creates an empty in-memory index at the given geohash
// precision used for the coarse neighbor pre-filter.
func NewMemoryIndex(precision int) *MemoryIndex {
	return &MemoryIndex{
		precision: precision,
		byRegion:  make(map[string]map[string]map[string]*entities.DriverMetadata),
		byDriver:  make(map[string]*entities.DriverMetadata),
	}
}

var _ Index = (*MemoryIndex)(nil)

func (m *MemoryIndex) removeLocked(driverID string) {
	prev, ok := m.byDriver[driverID]
	if !ok {
		return
	}
	gh := Encode(prev.Location.Latitude, prev.Location.Longitude, m.precision)
	if cell, ok := m.byRegion[prev.RegionID][gh]; ok {
		delete(cell, driverID)
		if len(cell) == 0 {
			delete(m.byRegion[prev.RegionID], gh)
		}
	}
	delete(m.byDriver, driverID)
}

func (m *MemoryIndex) Upsert(_ context.Context, meta *entities.DriverMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(meta.DriverID)

	gh := Encode(meta.Location.Latitude, meta.Location.Longitude, m.precision)
	if _, ok := m.byRegion[meta.RegionID]; !ok {
		m.byRegion[meta.RegionID] = make(map[string]map[string]*entities.DriverMetadata)
	}
	if _, ok := m.byRegion[meta.RegionID][gh]; !ok {
		m.byRegion[meta.RegionID][gh] = make(map[string]*entities.DriverMetadata)
	}

	clone := *meta
	m.byRegion[meta.RegionID][gh][meta.DriverID] = &clone
	m.byDriver[meta.DriverID] = &clone
	return nil
}

func (m *MemoryIndex) Radius(_ context.Context, region string, lat, lng, radiusKm float64, limit int) ([]DriverDistance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	center := Encode(lat, lng, m.precision)
	// Coarsen the grid until one cell spans radiusKm, so the 3x3 covers the circle.
	p := len(center)
	for p > 1 && math.Min(180/math.Ldexp(1, 5*p/2), 360/math.Ldexp(1, (5*p+1)/2)*math.Cos(lat*math.Pi/180))*111.32 < radiusKm {
		p--
	}
	cells := AllNeighbors(center[:p])

	var out []DriverDistance
	for gh, bucket := range m.byRegion[region] {
		if !slices.Contains(cells, gh[:p]) {
			continue
		}
		for driverID, meta := range bucket {
			if meta.Expired(time.Now()) {
				continue
			}
			d := HaversineDistance(lat, lng, meta.Location.Latitude, meta.Location.Longitude)
			if d <= radiusKm {
				out = append(out, DriverDistance{DriverID: driverID, DistanceKm: d})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryIndex) GetMetadata(_ context.Context, driverID string) (*entities.DriverMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.byDriver[driverID]
	if !ok || meta.Expired(time.Now()) {
		return nil, nil
	}
	clone := *meta
	return &clone, nil
}

func (m *MemoryIndex) SetStatus(_ context.Context, driverID string, status entities.DriverMetadataStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.byDriver[driverID]
	if !ok {
		return nil
	}
	meta.Status = status
	return nil
}
