package surge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ridecore/internal/domain/entities"
	"ridecore/internal/domain/flags"
	"ridecore/internal/flagstore"
	"ridecore/internal/repository"
)

const (
	windowDuration = 5 * time.Minute
	windowTTLSlack = 60 * time.Second
	cacheTTL       = 10 * time.Second

	clampMin = 1.0
	clampMax = 3.0
)

// Snapshot is one supply/demand sample for a cell, as carried by the
// supply.demand.snapshot event.
type Snapshot struct {
	CellID        string
	RegionID      string
	TenantID      string
	ActiveDrivers int
	PendingRides  int
	AtUnixMs      int64
}

// Calculator maintains the per-cell sliding window and recomputes the surge
// multiplier on every incoming snapshot.
type Calculator struct {
	store    Store
	geoCells repository.GeoCellRepository
	flags    flagstore.Store
	tx       repository.TxRunner
	log      *zap.SugaredLogger
}

func New(store Store, geoCells repository.GeoCellRepository, flagStore flagstore.Store, tx repository.TxRunner, log *zap.SugaredLogger) *Calculator {
	return &Calculator{store: store, geoCells: geoCells, flags: flagStore, tx: tx, log: log}
}

// OnSnapshot folds one incoming sample into the cell's rolling window and
// recomputes the cached multiplier and the audit row.
func (c *Calculator) OnSnapshot(ctx context.Context, snap Snapshot) error {
	if err := c.store.AddEntry(ctx, snap.CellID, snap.AtUnixMs, snap.ActiveDrivers, snap.PendingRides, windowDuration+windowTTLSlack); err != nil {
		return err
	}

	cutoff := snap.AtUnixMs - windowDuration.Milliseconds()
	if err := c.store.PruneBefore(ctx, snap.CellID, cutoff); err != nil {
		return err
	}

	entries, err := c.store.WindowEntries(ctx, snap.CellID)
	if err != nil {
		return err
	}

	ratio := demandRatio(entries, snap)
	raw := 1.0 + (ratio-1.0)*0.5
	multiplier := clamp(raw, clampMin, clampMax)

	if err := c.store.SetCache(ctx, snap.CellID, multiplier, cacheTTL); err != nil {
		return err
	}

	return c.tx(ctx, func(ctx context.Context) error {
		return c.geoCells.Upsert(ctx, &entities.GeoCellSnapshot{
			CellID:            snap.CellID,
			RegionID:          snap.RegionID,
			TenantID:          snap.TenantID,
			ActiveDriverCount: snap.ActiveDrivers,
			PendingRideCount:  snap.PendingRides,
			SurgeMultiplier:   multiplier,
			ComputedAt:        time.UnixMilli(snap.AtUnixMs),
		})
	})
}

// demandRatio computes the rank-weighted demand ratio over the window,
// rank 1 on the oldest sample and N on the newest. An empty window falls
// back to an instant-only calculation — in practice that only arises if
// OnSnapshot's own AddEntry didn't land in the window it just read, e.g. it
// was evicted by a concurrent prune.
func demandRatio(entries []WindowEntry, fallback Snapshot) float64 {
	n := len(entries)
	if n == 0 {
		drivers := fallback.ActiveDrivers
		if drivers < 1 {
			drivers = 1
		}
		return float64(fallback.PendingRides) / float64(drivers)
	}

	var weightedSum float64
	for i, e := range entries {
		rank := float64(i + 1)
		drivers := e.ActiveDrivers
		if drivers < 1 {
			drivers = 1
		}
		weightedSum += rank * float64(e.PendingRides) / float64(drivers)
	}
	denominator := float64(n*(n+1)) / 2.0
	return weightedSum / denominator
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Get resolves a cell's multiplier: kill-switch first, then the cache,
// then the audit-row fallback, then the 1.0 default.
func (c *Calculator) Get(ctx context.Context, tenantID, cellID string) (float64, error) {
	enabled, err := c.flags.Get(ctx, tenantID, flags.SurgePricingEnabled, flags.Defaults[flags.SurgePricingEnabled])
	if err != nil {
		return 0, err
	}
	if !enabled {
		return 1.0, nil
	}

	if cached, ok, err := c.store.GetCache(ctx, cellID); err != nil {
		return 0, err
	} else if ok {
		return cached, nil
	}

	var snapshot *entities.GeoCellSnapshot
	if err := c.tx(ctx, func(ctx context.Context) error {
		var err error
		snapshot, err = c.geoCells.GetByID(ctx, cellID)
		return err
	}); err != nil {
		return 0, err
	}
	if snapshot != nil {
		return snapshot.SurgeMultiplier, nil
	}
	return 1.0, nil
}
