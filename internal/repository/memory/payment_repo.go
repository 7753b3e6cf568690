package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRepository is an in-memory PaymentRepository enforcing the same
// at-most-one-payment-per-trip invariant a unique index enforces in postgres.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*entities.Payment
	byTrip   map[string]string
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]*entities.Payment),
		byTrip:   make(map[string]string),
	}
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(_ context.Context, payment *entities.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byTrip[payment.TripID]; exists {
		return errors.New("payment already exists for trip " + payment.TripID)
	}
	clone := *payment
	r.payments[payment.ID] = &clone
	r.byTrip[payment.TripID] = payment.ID
	return nil
}

func (r *PaymentRepository) GetByID(_ context.Context, id string) (*entities.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *PaymentRepository) GetByTripID(_ context.Context, tripID string) (*entities.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTrip[tripID]
	if !ok {
		return nil, nil
	}
	clone := *r.payments[id]
	return &clone, nil
}

func (r *PaymentRepository) Update(_ context.Context, payment *entities.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[payment.ID]; !ok {
		return ErrPaymentNotFound
	}
	clone := *payment
	r.payments[payment.ID] = &clone
	return nil
}

func (r *PaymentRepository) ListByStatus(_ context.Context, status entities.PaymentStatus, limit int) ([]*entities.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Payment
	for _, p := range r.payments {
		if p.Status == status {
			clone := *p
			out = append(out, &clone)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *PaymentRepository) ListStalePending(_ context.Context, olderThanUnixSeconds int64, limit int) ([]*entities.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Unix(olderThanUnixSeconds, 0)
	var out []*entities.Payment
	for _, p := range r.payments {
		if p.Status == entities.PaymentPending && p.CreatedAt.Before(cutoff) {
			clone := *p
			out = append(out, &clone)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
