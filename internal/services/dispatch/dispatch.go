// Package dispatch implements the Dispatch Engine: the ride
// lifecycle state machine, candidate scoring, the offer loop with
// reassignment, and the optimistic-lock accept race.
package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ridecore/internal/apperr"
	"ridecore/internal/bus"
	"ridecore/internal/domain/entities"
	"ridecore/internal/domain/flags"
	"ridecore/internal/flagstore"
	"ridecore/internal/geo"
	"ridecore/internal/lock"
	"ridecore/internal/repository"
)

// Config mirrors config.DispatchConfig plus the geo-query parameters the
// dispatch loop consults.
type Config struct {
	SearchRadiusKm float64
	SearchLimit    int
	LockWait       time.Duration
	LockLease      time.Duration
	OfferTTL       time.Duration
	MaxAttempts    int
}

// Engine is the Dispatch Engine. All its public operations are safe for
// concurrent use; the per-ride dispatch lock and the ride row's optimistic
// version are what keep concurrent calls from corrupting a single ride.
type Engine struct {
	rides    repository.RideRepository
	offers   repository.DriverOfferRepository
	geoIndex geo.Index
	mutex    lock.Mutex
	flags    flagstore.Store
	bus      bus.Bus
	tx       repository.TxRunner
	newID    func() string
	cfg      Config
	log      *zap.SugaredLogger
}

// New builds a Dispatch Engine. tx is the transactional scope each
// operation's state-changing block runs inside; newID generates new entity
// ids (pkg/idgen.New in production).
func New(
	rides repository.RideRepository,
	offers repository.DriverOfferRepository,
	geoIndex geo.Index,
	mutex lock.Mutex,
	flagStore flagstore.Store,
	eventBus bus.Bus,
	tx repository.TxRunner,
	newID func() string,
	cfg Config,
	log *zap.SugaredLogger,
) *Engine {
	return &Engine{
		rides:    rides,
		offers:   offers,
		geoIndex: geoIndex,
		mutex:    mutex,
		flags:    flagStore,
		bus:      eventBus,
		tx:       tx,
		newID:    newID,
		cfg:      cfg,
		log:      log,
	}
}

// RideSummary is create_ride's return shape.
type RideSummary struct {
	RideID           string
	Status           entities.RideStatus
	Tier             entities.VehicleTier
	AssignedDriverID string
	UpdatedAt        time.Time
}

func summarize(r *entities.Ride) *RideSummary {
	return &RideSummary{
		RideID:           r.ID,
		Status:           r.Status,
		Tier:             r.RequiredTier,
		AssignedDriverID: r.DriverID,
		UpdatedAt:        r.UpdatedAt,
	}
}

// CreateRideRequest is the inbound ride request.
type CreateRideRequest struct {
	TenantID      string
	RegionID      string
	RiderID       string
	Pickup        entities.Location
	Destination   entities.Location
	RequiredTier  entities.VehicleTier
	PaymentMethod string
}

// CreateRide is the initial entry point. A non-empty
// idempotencyKey resolving to an existing ride short-circuits as a replay.
func (e *Engine) CreateRide(ctx context.Context, req CreateRideRequest, idempotencyKey string) (*RideSummary, error) {
	killSwitch, err := e.flags.Get(ctx, req.TenantID, flags.DispatchKillSwitch, flags.Defaults[flags.DispatchKillSwitch])
	if err != nil {
		return nil, err
	}
	if killSwitch {
		return nil, apperr.ServiceUnavailable("dispatch kill switch is engaged for this tenant")
	}

	var ride, replay *entities.Ride
	err = e.tx(ctx, func(ctx context.Context) error {
		if idempotencyKey != "" {
			existing, err := e.rides.GetByIdempotencyKey(ctx, req.TenantID, idempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				replay = existing
				return nil
			}
		}

		ride = entities.NewRide(e.newID(), req.TenantID, req.RegionID, req.RiderID, req.Pickup, req.Destination, req.RequiredTier, req.PaymentMethod, idempotencyKey)
		return e.rides.Create(ctx, ride)
	})
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return summarize(replay), nil
	}

	if err := e.bus.Publish(ctx, bus.TopicRideRequested, ride.ID, bus.Envelope{
		EventType: bus.TopicRideRequested,
		TenantID:  ride.TenantID,
		RegionID:  ride.RegionID,
		Timestamp: time.Now(),
		Payload: map[string]any{
			"ride_id":  ride.ID,
			"rider_id": ride.RiderID,
		},
	}); err != nil {
		e.log.Warnw("failed to publish ride.requested", "ride_id", ride.ID, "error", err)
	}

	if err := e.dispatchLoop(ctx, ride.ID, nil); err != nil {
		e.log.Warnw("dispatch loop failed after create", "ride_id", ride.ID, "error", err)
	}

	var final *entities.Ride
	err = e.tx(ctx, func(ctx context.Context) error {
		var err error
		final, err = e.rides.GetByID(ctx, ride.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summarize(final), nil
}

// loopOutcome records what the transactional portion of the dispatch loop
// decided, so the caller can emit the matching event once the transaction
// has committed — publishing never happens inside it. The dispatch lock is
// still held while publishing and is released afterwards.
type loopOutcome int

const (
	outcomeNone loopOutcome = iota
	outcomeOfferSent
	outcomeNoDriverFound
)

type loopResult struct {
	outcome    loopOutcome
	ride       *entities.Ride
	driverID   string
	attemptNum int
}

// dispatchLoop runs one dispatch attempt: lock the ride, re-read it, pick
// the best candidate, write the offer, arm its TTL sentinel. tried holds
// driver ids excluded from this attempt (a just-declined or just-timed-out
// driver).
func (e *Engine) dispatchLoop(ctx context.Context, rideID string, tried map[string]bool) error {
	if tried == nil {
		tried = map[string]bool{}
	}

	lockKey := lock.RideDispatchKey(rideID)
	acquired, token, err := e.mutex.TryAcquire(ctx, lockKey, e.cfg.LockWait, e.cfg.LockLease)
	if err != nil {
		return err
	}
	if !acquired {
		e.log.Infow("dispatch lock held by another worker, skipping attempt", "ride_id", rideID)
		return nil
	}
	defer func() {
		if err := e.mutex.Release(ctx, lockKey, token); err != nil {
			e.log.Warnw("failed to release dispatch lock", "ride_id", rideID, "error", err)
		}
	}()

	var result loopResult
	err = e.tx(ctx, func(ctx context.Context) error {
		r, err := e.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}

		switch r.Status {
		case entities.RideStatusAccepted, entities.RideStatusCancelled, entities.RideStatusCompleted:
			result = loopResult{outcome: outcomeNone, ride: r}
			return nil
		}

		if r.AttemptCount >= e.cfg.MaxAttempts {
			if err := r.TransitionTo(entities.RideStatusNoDriverFound); err != nil {
				return err
			}
			if err := e.rides.Update(ctx, r, r.Version); err != nil {
				return err
			}
			result = loopResult{outcome: outcomeNoDriverFound, ride: r}
			return nil
		}

		newScoring, err := e.flags.Get(ctx, r.TenantID, flags.NewScoringAlgo, flags.Defaults[flags.NewScoringAlgo])
		if err != nil {
			return err
		}

		chosen, err := e.selectCandidate(ctx, r, tried, weightsFor(newScoring))
		if err != nil {
			return err
		}
		if chosen == "" {
			if err := r.TransitionTo(entities.RideStatusNoDriverFound); err != nil {
				return err
			}
			if err := e.rides.Update(ctx, r, r.Version); err != nil {
				return err
			}
			result = loopResult{outcome: outcomeNoDriverFound, ride: r}
			return nil
		}

		attemptNum := r.AttemptCount + 1
		offer := entities.NewDriverOffer(e.newID(), r.ID, chosen, attemptNum, int(e.cfg.OfferTTL.Seconds()))
		if err := e.offers.Create(ctx, offer); err != nil {
			return err
		}

		expectedVersion := r.Version
		r.AttemptCount = attemptNum
		if r.Status != entities.RideStatusDispatching {
			if err := r.TransitionTo(entities.RideStatusDispatching); err != nil {
				return err
			}
		} else {
			r.UpdatedAt = time.Now()
		}
		if err := e.rides.Update(ctx, r, expectedVersion); err != nil {
			return err
		}

		if err := e.geoIndex.SetStatus(ctx, chosen, entities.DriverDispatching); err != nil {
			return err
		}
		if _, _, err := e.mutex.TryAcquire(ctx, lock.OfferTTLKey(r.ID, chosen), 0, e.cfg.OfferTTL); err != nil {
			return err
		}

		result = loopResult{outcome: outcomeOfferSent, ride: r, driverID: chosen, attemptNum: attemptNum}
		return nil
	})
	if err != nil {
		return err
	}

	switch result.outcome {
	case outcomeOfferSent:
		if err := e.bus.Publish(ctx, bus.TopicDriverOfferSent, result.ride.ID, bus.Envelope{
			EventType: bus.TopicDriverOfferSent,
			TenantID:  result.ride.TenantID,
			RegionID:  result.ride.RegionID,
			Timestamp: time.Now(),
			Payload: map[string]any{
				"ride_id":        result.ride.ID,
				"driver_id":      result.driverID,
				"attempt_number": result.attemptNum,
				"ttl_seconds":    int(e.cfg.OfferTTL.Seconds()),
			},
		}); err != nil {
			e.log.Warnw("failed to publish driver.offer.sent", "ride_id", result.ride.ID, "error", err)
		}
	case outcomeNoDriverFound:
		if err := e.bus.Publish(ctx, bus.TopicRideNoDriverFound, result.ride.ID, bus.Envelope{
			EventType: bus.TopicRideNoDriverFound,
			TenantID:  result.ride.TenantID,
			RegionID:  result.ride.RegionID,
			Timestamp: time.Now(),
			Payload:   map[string]any{"ride_id": result.ride.ID},
		}); err != nil {
			e.log.Warnw("failed to publish ride.no_driver_found", "ride_id", result.ride.ID, "error", err)
		}
	}
	return nil
}

// selectCandidate queries the geo index around the pickup, filters by
// status/tier/tried-set, scores the survivors, and returns the winner's
// driver id (empty if none survive).
func (e *Engine) selectCandidate(ctx context.Context, r *entities.Ride, tried map[string]bool, w scoreWeights) (string, error) {
	dists, err := e.geoIndex.Radius(ctx, r.RegionID, r.Pickup.Latitude, r.Pickup.Longitude, e.cfg.SearchRadiusKm, e.cfg.SearchLimit)
	if err != nil {
		return "", err
	}

	metaCache := map[string]*entities.DriverMetadata{}
	lookup := func(driverID string) *entities.DriverMetadata { return metaCache[driverID] }

	filtered := make([]geo.DriverDistance, 0, len(dists))
	for _, d := range dists {
		if tried[d.DriverID] {
			continue
		}
		meta, err := e.geoIndex.GetMetadata(ctx, d.DriverID)
		if err != nil {
			return "", err
		}
		if meta == nil || meta.Status != entities.DriverIdle {
			continue
		}
		if meta.Tier.Rank() < r.RequiredTier.Rank() {
			continue
		}
		metaCache[d.DriverID] = meta
		filtered = append(filtered, d)
	}
	if len(filtered) == 0 {
		return "", nil
	}

	ranked := rankCandidates(filtered, lookup, w)
	return ranked[0].DriverID, nil
}

// Accept transitions DISPATCHING→ACCEPTED with an optimistic-lock guard.
// A version conflict means another driver already won the race and
// surfaces as apperr.RideAlreadyAccepted.
func (e *Engine) Accept(ctx context.Context, rideID, driverID string) (*entities.Ride, error) {
	var result *entities.Ride
	err := e.tx(ctx, func(ctx context.Context) error {
		r, err := e.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if r.Status != entities.RideStatusDispatching {
			return apperr.InvalidState("ride is not awaiting acceptance")
		}

		expectedVersion := r.Version
		if err := r.TransitionTo(entities.RideStatusAccepted); err != nil {
			return apperr.InvalidState(err.Error())
		}
		r.AssignDriver(driverID)

		if err := e.rides.Update(ctx, r, expectedVersion); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return apperr.RideAlreadyAccepted()
			}
			return err
		}

		open, err := e.offers.GetOpenByRide(ctx, rideID)
		if err != nil {
			return err
		}
		for _, o := range open {
			if o.DriverID == driverID {
				if err := e.offers.Resolve(ctx, o.ID, entities.OfferResponseAccepted); err != nil {
					return err
				}
				break
			}
		}

		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.geoIndex.SetStatus(ctx, driverID, entities.DriverOnTrip); err != nil {
		e.log.Warnw("failed to mark driver on trip", "driver_id", driverID, "error", err)
	}
	if err := e.bus.Publish(ctx, bus.TopicRideAccepted, rideID, bus.Envelope{
		EventType: bus.TopicRideAccepted,
		TenantID:  result.TenantID,
		RegionID:  result.RegionID,
		Timestamp: time.Now(),
		Payload:   map[string]any{"ride_id": rideID, "driver_id": driverID},
	}); err != nil {
		e.log.Warnw("failed to publish ride.accepted", "ride_id", rideID, "error", err)
	}
	return result, nil
}

// Decline records the open offer DECLINED, frees the driver, emits
// ride.declined, and re-enters the dispatch loop with driverID excluded.
func (e *Engine) Decline(ctx context.Context, rideID, driverID string) error {
	var ride *entities.Ride
	err := e.tx(ctx, func(ctx context.Context) error {
		r, err := e.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		ride = r

		open, err := e.offers.GetOpenByRide(ctx, rideID)
		if err != nil {
			return err
		}
		for _, o := range open {
			if o.DriverID == driverID {
				return e.offers.Resolve(ctx, o.ID, entities.OfferResponseDeclined)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.geoIndex.SetStatus(ctx, driverID, entities.DriverIdle); err != nil {
		e.log.Warnw("failed to free declining driver", "driver_id", driverID, "error", err)
	}
	if err := e.bus.Publish(ctx, bus.TopicRideDeclined, rideID, bus.Envelope{
		EventType: bus.TopicRideDeclined,
		TenantID:  ride.TenantID,
		RegionID:  ride.RegionID,
		Timestamp: time.Now(),
		Payload:   map[string]any{"ride_id": rideID, "driver_id": driverID},
	}); err != nil {
		e.log.Warnw("failed to publish ride.declined", "ride_id", rideID, "error", err)
	}

	return e.dispatchLoop(ctx, rideID, map[string]bool{driverID: true})
}

// DriverArrived requires status=ACCEPTED and a matching assigned driver.
func (e *Engine) DriverArrived(ctx context.Context, rideID, driverID string) error {
	return e.guardedTransition(ctx, rideID, driverID, entities.RideStatusAccepted, entities.RideStatusDriverArrived, bus.TopicRideDriverArrived)
}

// Start requires status=DRIVER_ARRIVED and a matching assigned driver.
func (e *Engine) Start(ctx context.Context, rideID, driverID string) error {
	return e.guardedTransition(ctx, rideID, driverID, entities.RideStatusDriverArrived, entities.RideStatusInProgress, bus.TopicRideInProgress)
}

func (e *Engine) guardedTransition(ctx context.Context, rideID, driverID string, from, to entities.RideStatus, topic string) error {
	var ride *entities.Ride
	err := e.tx(ctx, func(ctx context.Context) error {
		r, err := e.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if r.Status != from {
			return apperr.InvalidState("ride is not in the expected state for this transition")
		}
		if r.DriverID != driverID {
			return apperr.UnauthorizedDriver()
		}

		expectedVersion := r.Version
		if err := r.TransitionTo(to); err != nil {
			return apperr.InvalidState(err.Error())
		}
		if err := e.rides.Update(ctx, r, expectedVersion); err != nil {
			return err
		}
		ride = r
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.bus.Publish(ctx, topic, rideID, bus.Envelope{
		EventType: topic,
		TenantID:  ride.TenantID,
		RegionID:  ride.RegionID,
		Timestamp: time.Now(),
		Payload:   map[string]any{"ride_id": rideID, "driver_id": driverID},
	}); err != nil {
		e.log.Warnw("failed to publish transition event", "topic", topic, "ride_id", rideID, "error", err)
	}
	return nil
}

// Cancel fails CANNOT_CANCEL for an IN_PROGRESS ride or any ride whose
// state machine has no path to CANCELLED (the terminal states); otherwise
// transitions to CANCELLED.
func (e *Engine) Cancel(ctx context.Context, rideID, requesterID string) error {
	var ride *entities.Ride
	err := e.tx(ctx, func(ctx context.Context) error {
		r, err := e.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if r.Status == entities.RideStatusInProgress || !r.CanTransitionTo(entities.RideStatusCancelled) {
			return apperr.CannotCancel()
		}

		expectedVersion := r.Version
		if err := r.TransitionTo(entities.RideStatusCancelled); err != nil {
			return apperr.CannotCancel()
		}
		if err := e.rides.Update(ctx, r, expectedVersion); err != nil {
			return err
		}
		ride = r
		return nil
	})
	if err != nil {
		return err
	}

	if ride.DriverID != "" {
		if err := e.geoIndex.SetStatus(ctx, ride.DriverID, entities.DriverIdle); err != nil {
			e.log.Warnw("failed to free driver on cancel", "driver_id", ride.DriverID, "error", err)
		}
	}
	if err := e.bus.Publish(ctx, bus.TopicRideCancelled, rideID, bus.Envelope{
		EventType: bus.TopicRideCancelled,
		TenantID:  ride.TenantID,
		RegionID:  ride.RegionID,
		Timestamp: time.Now(),
		Payload:   map[string]any{"ride_id": rideID, "requester_id": requesterID},
	}); err != nil {
		e.log.Warnw("failed to publish ride.cancelled", "ride_id", rideID, "error", err)
	}
	return nil
}

// MarkCompleted is the entry point the Trip Service calls once a trip
// ends, transitioning IN_PROGRESS→COMPLETED with the same optimistic-lock
// guard as every other write. The engine never calls this itself.
func (e *Engine) MarkCompleted(ctx context.Context, rideID string, expectedVersion int64) error {
	return e.tx(ctx, func(ctx context.Context) error {
		r, err := e.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if r.Version != expectedVersion {
			return repository.ErrOptimisticLock
		}
		if err := r.TransitionTo(entities.RideStatusCompleted); err != nil {
			return apperr.InvalidState(err.Error())
		}
		return e.rides.Update(ctx, r, expectedVersion)
	})
}

// GetRideSummary is GET /rides/{id}'s read path. It returns
// (nil, nil) for an unknown ride so the handler can map that to 404.
func (e *Engine) GetRideSummary(ctx context.Context, rideID string) (*RideSummary, error) {
	var summary *RideSummary
	err := e.tx(ctx, func(ctx context.Context) error {
		r, err := e.rides.GetByID(ctx, rideID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		summary = summarize(r)
		return nil
	})
	return summary, err
}

// TimeoutSweep re-enters the dispatch loop for rideID, seeding the
// tried-set with the timed-out driver — used by the Offer Timeout
// Scheduler.
func (e *Engine) TimeoutSweep(ctx context.Context, rideID, timedOutDriverID string) error {
	return e.dispatchLoop(ctx, rideID, map[string]bool{timedOutDriverID: true})
}
