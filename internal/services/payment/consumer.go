package payment

import (
	"context"
	"fmt"

	"ridecore/internal/bus"
	"ridecore/internal/domain/entities"
)

// TripEndedHandler adapts a trip.ended bus envelope into
// Orchestrator.Initiate. Only events with a fare and status ENDED trigger a
// payment; the Trip Service is the producer, and this is the topic's only
// consumer here.
func TripEndedHandler(o *Orchestrator) bus.Handler {
	return func(ctx context.Context, env bus.Envelope) error {
		status, _ := env.Payload["status"].(string)
		if status != "ENDED" {
			return nil
		}
		fare, ok := env.Payload["fare"].(float64)
		if !ok {
			return nil
		}

		tripID, _ := env.Payload["trip_id"].(string)
		riderID, _ := env.Payload["rider_id"].(string)
		currency, _ := env.Payload["currency"].(string)
		method, _ := env.Payload["payment_method"].(string)
		if tripID == "" {
			return fmt.Errorf("payment: trip.ended event missing trip_id")
		}
		if currency == "" {
			currency = "USD"
		}

		_, err := o.Initiate(ctx, TripEvent{
			TripID:        tripID,
			RiderID:       riderID,
			TenantID:      env.TenantID,
			Amount:        entities.NewMoney(fare, currency),
			PaymentMethod: method,
		})
		return err
	}
}
