package surge

import (
	"context"
	"fmt"

	"ridecore/internal/bus"
)

// SupplyDemandSnapshotHandler adapts a supply.demand.snapshot bus envelope
// into Calculator.OnSnapshot. The driver-location write path and the Trip
// Service produce the counts this event carries; this is the topic's only
// consumer here.
func SupplyDemandSnapshotHandler(c *Calculator) bus.Handler {
	return func(ctx context.Context, env bus.Envelope) error {
		cellID, _ := env.Payload["cell_id"].(string)
		if cellID == "" {
			return fmt.Errorf("surge: supply.demand.snapshot event missing cell_id")
		}
		regionID, _ := env.Payload["region_id"].(string)
		activeDrivers, _ := env.Payload["active_drivers"].(float64)
		pendingRides, _ := env.Payload["pending_rides"].(float64)

		return c.OnSnapshot(ctx, Snapshot{
			CellID:        cellID,
			RegionID:      regionID,
			TenantID:      env.TenantID,
			ActiveDrivers: int(activeDrivers),
			PendingRides:  int(pendingRides),
			AtUnixMs:      env.Timestamp.UnixMilli(),
		})
	}
}
