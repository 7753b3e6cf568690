// Package lock implements a named distributed mutex with wait/lease
// semantics, used both for ride-exclusive dispatch and for the offer TTL
// sentinel (which is acquired once and never released).
package lock

import (
	"context"
	"time"
)

// Mutex is a named, TTL-leased lock backed by the shared KV store.
type Mutex interface {
	// TryAcquire polls for up to wait for the named lock, holding it for
	// lease once acquired. Returns acquired=false (no error) if the wait
	// elapsed without acquiring — callers should treat this as "another
	// holder owns this attempt" rather than a failure.
	TryAcquire(ctx context.Context, key string, wait, lease time.Duration) (acquired bool, token string, err error)

	// Release drops the lock early, but only if token still matches the
	// current holder (prevents releasing a lock some other holder re-acquired
	// after this one's lease expired).
	Release(ctx context.Context, key, token string) error

	// IsLocked reports whether key is currently held by anyone.
	IsLocked(ctx context.Context, key string) (bool, error)
}

// Key helpers for the two lock namespaces.

// RideDispatchKey is "lock:ride:{ride_id}" — the per-ride dispatch lock.
func RideDispatchKey(rideID string) string {
	return "lock:ride:" + rideID
}

// OfferTTLKey is "offer:ttl:{ride_id}:{driver_id}" — acquired for exactly
// the offer's TTL and never explicitly released; its mere presence is the
// signal that the offer is still open.
func OfferTTLKey(rideID, driverID string) string {
	return "offer:ttl:" + rideID + ":" + driverID
}
