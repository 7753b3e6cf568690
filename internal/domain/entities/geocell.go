package entities

import "time"

// GeoCellSnapshot is the audit row the Surge Calculator overwrites on
// every recompute. History lives on the bus, not in this row; each write
// replaces the prior snapshot for the same cell.
type GeoCellSnapshot struct {
	CellID            string
	RegionID          string
	TenantID          string
	ActiveDriverCount int
	PendingRideCount  int
	SurgeMultiplier   float64
	ComputedAt        time.Time
}
