// Package idgen generates entity identifiers. Every identity in this module
// (ride, offer, payment, outbox row) is a random v4 UUID — no central counter,
// so generation never needs coordination across workers or regions.
package idgen

import "github.com/google/uuid"

// New returns a new random UUID string.
func New() string {
	return uuid.New().String()
}
