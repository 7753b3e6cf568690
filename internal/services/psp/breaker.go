package psp

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"ridecore/internal/domain/entities"
)

// BreakerPolicy composes a circuit breaker and a retry policy around a PSP
// Client. Both are explicit policy objects, so the policy is testable in
// isolation: feed it a failing charge func and observe the outcome and
// retry trace.
type BreakerPolicy struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
}

// RetryConfig is the retry policy under the breaker. Only PSP errors
// retry; everything else propagates on the first failure.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Factor         float64
}

// BreakerConfig parameterizes the breaker: the closed-state call window,
// the failure-rate threshold that trips it, how long it stays open, and the
// half-open probe budget.
type BreakerConfig struct {
	Window              uint32
	FailureThreshold    float64
	OpenDuration        time.Duration
	HalfOpenProbeBudget uint32
}

// NewBreakerPolicy wraps client with the breaker + retry policy.
func NewBreakerPolicy(client Client, bc BreakerConfig, rc RetryConfig) *BreakerPolicy {
	settings := gobreaker.Settings{
		Name:        "psp-charge",
		MaxRequests: bc.HalfOpenProbeBudget,
		Interval:    0, // never auto-reset the closed-state window; only a state change resets counts
		Timeout:     bc.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.Window {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= bc.FailureThreshold
		},
	}

	return &BreakerPolicy{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		retry:   rc,
	}
}

// ErrBreakerOpen is surfaced when the breaker is OPEN, or HALF-OPEN with
// its probe budget exhausted; the caller's fallback path runs.
var ErrBreakerOpen = errors.New("psp: circuit breaker open")

// Charge runs client.Charge through the breaker, retrying PSP errors up to
// RetryConfig.MaxAttempts with exponential backoff. Non-PSP errors and a
// breaker trip propagate immediately without retry.
func (p *BreakerPolicy) Charge(ctx context.Context, riderID string, amount entities.Money, method string) (ChargeResult, error) {
	var result ChargeResult

	operation := func() error {
		out, err := p.breaker.Execute(func() (any, error) {
			return p.client.Charge(ctx, riderID, amount, method)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrBreakerOpen)
			}
			if errors.Is(err, ErrPSPUnavailable) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		result = out.(ChargeResult)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retry.InitialBackoff
	bo.Multiplier = p.retry.Factor
	// MaxAttempts total attempts means MaxAttempts-1 retries after the first.
	withRetries := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.retry.MaxAttempts-1)), ctx)

	if err := backoff.Retry(operation, withRetries); err != nil {
		return ChargeResult{}, err
	}
	return result, nil
}

// State reports the breaker's current state, for observability/tests.
func (p *BreakerPolicy) State() gobreaker.State {
	return p.breaker.State()
}
