package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ridecore/internal/domain/entities"
	"ridecore/internal/repository"
)

// OfferTimeoutScheduler sweeps every sweepInterval: scan DISPATCHING
// rides, find offers past their TTL, mark them TIMEOUT, and re-enter the
// dispatch loop. One instance is sufficient per region; multiple instances
// coordinate via the ride dispatch lock inside Engine.dispatchLoop, so two
// instances never run the dispatch loop for the same ride at the same time.
// The lock serializes but does not deduplicate: two instances that both
// resolve the same expired offer can each run a re-dispatch attempt in turn.
type OfferTimeoutScheduler struct {
	rides         repository.RideRepository
	offers        repository.DriverOfferRepository
	tx            repository.TxRunner
	engine        *Engine
	sweepInterval time.Duration
	batchSize     int
	log           *zap.SugaredLogger
}

func NewOfferTimeoutScheduler(
	rides repository.RideRepository,
	offers repository.DriverOfferRepository,
	tx repository.TxRunner,
	engine *Engine,
	sweepInterval time.Duration,
	log *zap.SugaredLogger,
) *OfferTimeoutScheduler {
	return &OfferTimeoutScheduler{
		rides:         rides,
		offers:        offers,
		tx:            tx,
		engine:        engine,
		sweepInterval: sweepInterval,
		batchSize:     200,
		log:           log,
	}
}

// Run blocks, sweeping every sweepInterval until ctx is cancelled.
func (s *OfferTimeoutScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.log.Warnw("offer timeout sweep failed", "error", err)
			}
		}
	}
}

func (s *OfferTimeoutScheduler) sweep(ctx context.Context) error {
	var dispatching []*entities.Ride
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		dispatching, err = s.rides.ListByStatus(ctx, entities.RideStatusDispatching, s.batchSize)
		return err
	})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, ride := range dispatching {
		var expiredDriver string
		err := s.tx(ctx, func(ctx context.Context) error {
			open, err := s.offers.GetOpenByRide(ctx, ride.ID)
			if err != nil {
				return err
			}
			for _, offer := range open {
				if !offer.Expired(now) {
					continue
				}
				if err := s.offers.Resolve(ctx, offer.ID, entities.OfferResponseTimeout); err != nil {
					return err
				}
				expiredDriver = offer.DriverID
				break
			}
			return nil
		})
		if err != nil {
			s.log.Warnw("failed to resolve expired offer", "ride_id", ride.ID, "error", err)
			continue
		}
		if expiredDriver == "" {
			continue
		}
		if err := s.engine.TimeoutSweep(ctx, ride.ID, expiredDriver); err != nil {
			s.log.Warnw("re-dispatch after timeout failed", "ride_id", ride.ID, "driver_id", expiredDriver, "error", err)
		}
	}
	return nil
}
