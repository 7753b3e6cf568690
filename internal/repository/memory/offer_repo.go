package memory

import (
	"context"
	"errors"
	"sync"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

var ErrOfferNotFound = errors.New("driver offer not found")

// DriverOfferRepository is an in-memory, append-only DriverOffer store.
type DriverOfferRepository struct {
	mu     sync.RWMutex
	offers map[string]*entities.DriverOffer
}

func NewDriverOfferRepository() *DriverOfferRepository {
	return &DriverOfferRepository{offers: make(map[string]*entities.DriverOffer)}
}

var _ repository.DriverOfferRepository = (*DriverOfferRepository)(nil)

func (r *DriverOfferRepository) Create(_ context.Context, offer *entities.DriverOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *offer
	r.offers[offer.ID] = &clone
	return nil
}

func (r *DriverOfferRepository) GetByID(_ context.Context, id string) (*entities.DriverOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offer, ok := r.offers[id]
	if !ok {
		return nil, ErrOfferNotFound
	}
	clone := *offer
	return &clone, nil
}

func (r *DriverOfferRepository) GetOpenByRide(_ context.Context, rideID string) ([]*entities.DriverOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []*entities.DriverOffer
	for _, offer := range r.offers {
		if offer.RideID == rideID && offer.IsOpen() {
			clone := *offer
			open = append(open, &clone)
		}
	}
	return open, nil
}

func (r *DriverOfferRepository) Resolve(_ context.Context, offerID string, response entities.OfferResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[offerID]
	if !ok {
		return ErrOfferNotFound
	}
	offer.Resolve(response)
	return nil
}
