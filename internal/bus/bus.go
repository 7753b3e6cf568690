// Package bus is the partitioned, ordered event bus: every emitter
// publishes using the affected entity's id as the partition key, preserving
// per-entity order across horizontal scale.
package bus

import (
	"context"
	"time"
)

// Envelope is the JSON record every topic carries: entity/tenant/region
// ids, an ISO-8601 timestamp, and an event-specific payload.
type Envelope struct {
	EventType string         `json:"event_type"`
	TenantID  string         `json:"tenant_id"`
	RegionID  string         `json:"region_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Bus is the publish contract every component emits through. Publish is
// awaited synchronously for durability: callers see the broker ack or an
// error, never fire-and-forget.
type Bus interface {
	// Publish sends env to topic, using partitionKey (ride id / payment id /
	// cell id) so the broker preserves per-entity order.
	Publish(ctx context.Context, topic, partitionKey string, env Envelope) error
}

// Topics carried on the bus, one constant per event type.
const (
	TopicRideRequested     = "ride.requested"
	TopicDriverOfferSent   = "driver.offer.sent"
	TopicRideAccepted      = "ride.accepted"
	TopicRideDeclined      = "ride.declined"
	TopicRideCancelled     = "ride.cancelled"
	TopicRideNoDriverFound = "ride.no_driver_found"
	TopicRideDriverArrived = "ride.driver_arrived"
	TopicRideInProgress    = "ride.in_progress"

	TopicTripStarted = "trip.started"
	TopicTripEnded   = "trip.ended"
	TopicTripPaused  = "trip.paused"

	TopicPaymentInitiated = "payment.initiated"
	TopicPaymentCaptured  = "payment.captured"
	TopicPaymentFailed    = "payment.failed"

	TopicSupplyDemandSnapshot = "supply.demand.snapshot"
	TopicDriverLocationUpdate = "driver.location.updated"
)
