// Package psp models the Payment Service Provider: an unreliable external
// dependency charged via a circuit-breaker-guarded call. The adapter shape
// mirrors github.com/stripe/stripe-go/v83's PaymentIntent charge call
// (rider id, amount, currency, method in; a reference + status out) so a
// real Stripe client could satisfy Client without renaming anything. Two
// implementations ship here: a scriptable stub and StripeClient.
package psp

import (
	"context"
	"errors"

	"ridecore/internal/domain/entities"
)

// ErrPSPUnavailable is a transient PSP error, eligible for retry under the
// breaker policy.
var ErrPSPUnavailable = errors.New("psp: charge failed")

// ChargeResult is the PSP's successful response.
type ChargeResult struct {
	Reference string
}

// Client is the PSP contract: charge(rider_id, amount, currency, method).
type Client interface {
	Charge(ctx context.Context, riderID string, amount entities.Money, method string) (ChargeResult, error)
}

// FailureFunc decides whether a given charge attempt should fail, letting
// tests script PSP outages.
type FailureFunc func(riderID string, amount entities.Money) bool

// StubClient is a fake PSP used in tests and local development in place of a
// real Stripe/Adyen/Braintree integration. AlwaysFail, toggled by tests,
// reproduces a PSP outage without a real network dependency.
type StubClient struct {
	shouldFail FailureFunc
	refGen     func() string
}

// NewStubClient creates a stub that succeeds unless shouldFail is non-nil and
// returns true for the attempt. refGen generates the PSP reference on
// success (tests can inject a deterministic generator).
func NewStubClient(shouldFail FailureFunc, refGen func() string) *StubClient {
	return &StubClient{shouldFail: shouldFail, refGen: refGen}
}

var _ Client = (*StubClient)(nil)

func (c *StubClient) Charge(_ context.Context, riderID string, amount entities.Money, _ string) (ChargeResult, error) {
	if c.shouldFail != nil && c.shouldFail(riderID, amount) {
		return ChargeResult{}, ErrPSPUnavailable
	}
	return ChargeResult{Reference: c.refGen()}, nil
}

// AlwaysFail returns a FailureFunc that fails every attempt — a scripted
// full PSP outage.
func AlwaysFail() FailureFunc {
	return func(string, entities.Money) bool { return true }
}

// NeverFail returns a FailureFunc that never forces a failure.
func NeverFail() FailureFunc {
	return nil
}
