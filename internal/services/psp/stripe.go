package psp

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v83"

	"ridecore/internal/domain/entities"
)

// StripeClient charges through Stripe PaymentIntents: each charge creates
// and confirms one intent, and the intent id becomes the PSP reference.
// Any Stripe-side failure is surfaced as a transient PSP error so the
// breaker and retry policy treat it the same as a stub outage.
type StripeClient struct {
	client *stripe.Client
}

func NewStripeClient(apiKey string) *StripeClient {
	return &StripeClient{client: stripe.NewClient(apiKey)}
}

var _ Client = (*StripeClient)(nil)

func (c *StripeClient) Charge(ctx context.Context, riderID string, amount entities.Money, method string) (ChargeResult, error) {
	intent, err := c.client.V1PaymentIntents.Create(ctx, &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(amount.MinorUnits),
		Currency:      stripe.String(amount.Currency),
		PaymentMethod: stripe.String(method),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("ride fare for rider " + riderID),
	})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("%w: %v", ErrPSPUnavailable, err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return ChargeResult{}, fmt.Errorf("%w: intent %s is %s", ErrPSPUnavailable, intent.ID, intent.Status)
	}
	return ChargeResult{Reference: intent.ID}, nil
}
