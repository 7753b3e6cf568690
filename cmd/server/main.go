// Package main wires the ride-hailing core: the dispatch engine, the
// payment orchestrator with its outbox relay and reconciler, and the surge
// calculator, sharing one Postgres pool, one Redis client, and one NATS
// connection. All wiring is plain constructor calls so the dependency graph
// reads top to bottom.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ridecore/internal/api"
	"ridecore/internal/api/handlers"
	"ridecore/internal/bus"
	"ridecore/internal/config"
	"ridecore/internal/flagstore"
	"ridecore/internal/geo"
	"ridecore/internal/idempotency"
	"ridecore/internal/lock"
	"ridecore/internal/repository/postgres"
	"ridecore/internal/services/dispatch"
	"ridecore/internal/services/payment"
	"ridecore/internal/services/psp"
	"ridecore/internal/services/surge"
	"ridecore/pkg/idgen"
)

// newID generates a new entity id for every repository this server wires
// (ride, offer, payment, outbox row) — a thin alias so dispatch.New's and
// payment.NewOrchestrator's newID parameter reads as what it is at the call
// site instead of a bare package-qualified reference repeated five times.
func newID() string { return idgen.New() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.NewConfigFromEnv()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Shared infrastructure: Postgres (relational store), Redis (geo index,
	// locks, flags, surge window/cache, idempotency cache), NATS (event
	// bus). Every public operation's transactional scope runs against the
	// pool via postgres.RunInTx.
	pool, err := pgxpool.New(ctx, cfg.Store.PostgresDSN)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.Store.RedisDSN)
	if err != nil {
		sugar.Fatalw("invalid redis DSN", "error", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	natsConn, err := nats.Connect(cfg.Store.NATSURL)
	if err != nil {
		sugar.Fatalw("failed to connect to nats", "error", err)
	}
	defer natsConn.Close()

	rideRepo := postgres.NewRideRepo()
	offerRepo := postgres.NewDriverOfferRepo()
	paymentRepo := postgres.NewPaymentRepo()
	outboxRepo := postgres.NewOutboxRepo()
	geoCellRepo := postgres.NewGeoCellRepo()
	tx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return postgres.RunInTx(ctx, pool, fn)
	}

	geoIndex := geo.NewRedisIndex(redisClient, sugar)
	mutex := lock.NewRedisMutex(redisClient, 100*time.Millisecond)
	flagStore := flagstore.NewRedisStore(redisClient)
	surgeStore := surge.NewRedisStore(redisClient)
	idemStore := idempotency.NewRedisStore(redisClient)

	eventBus := bus.NewNATSBus(natsConn, sugar)

	// PSP adapter: Stripe when an API key is configured, otherwise the
	// stub, so local environments never need gateway credentials.
	var pspClient psp.Client
	if cfg.Payment.StripeAPIKey != "" {
		pspClient = psp.NewStripeClient(cfg.Payment.StripeAPIKey)
	} else {
		pspClient = psp.NewStubClient(psp.NeverFail(), func() string { return "psp_ref_" + time.Now().UTC().Format("20060102150405.000000000") })
	}
	breaker := psp.NewBreakerPolicy(pspClient, psp.BreakerConfig{
		Window:              uint32(cfg.Payment.BreakerWindow),
		FailureThreshold:    cfg.Payment.BreakerFailureThreshold,
		OpenDuration:        cfg.Payment.BreakerOpenDuration,
		HalfOpenProbeBudget: uint32(cfg.Payment.BreakerHalfOpenProbes),
	}, psp.RetryConfig{
		MaxAttempts:    cfg.Payment.RetryMaxAttempts,
		InitialBackoff: cfg.Payment.RetryInitialBackoff,
		Factor:         cfg.Payment.RetryFactor,
	})

	dispatchEngine := dispatch.New(rideRepo, offerRepo, geoIndex, mutex, flagStore, eventBus, tx, newID, dispatch.Config{
		SearchRadiusKm: cfg.Geo.DefaultRadiusKm,
		SearchLimit:    cfg.Geo.DefaultLimit,
		LockWait:       cfg.Dispatch.LockWait,
		LockLease:      cfg.Dispatch.LockLease,
		OfferTTL:       cfg.Dispatch.OfferTTL,
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
	}, sugar)
	offerScheduler := dispatch.NewOfferTimeoutScheduler(rideRepo, offerRepo, tx, dispatchEngine, cfg.Dispatch.OfferSweepInterval, sugar)

	orchestrator := payment.NewOrchestrator(paymentRepo, outboxRepo, flagStore, breaker, eventBus, tx, newID, sugar)
	outboxRelay := payment.NewOutboxRelay(outboxRepo, eventBus, tx, cfg.Payment.OutboxPollInterval, cfg.Payment.OutboxBatchSize, cfg.Payment.OutboxMaxRetries, sugar)
	reconciler := payment.NewReconciler(paymentRepo, orchestrator, tx, cfg.Payment.ReconcileFailedInterval, cfg.Payment.ReconcileStaleInterval, cfg.Payment.StalePendingThreshold, cfg.Payment.MaxReconcileRetries, sugar)

	surgeCalculator := surge.New(surgeStore, geoCellRepo, flagStore, tx, sugar)

	rideHandler := handlers.NewRideHandler(dispatchEngine, idemStore, 24*time.Hour, cfg.Region)
	surgeHandler := handlers.NewSurgeHandler(surgeCalculator)

	router := api.NewRouter(rideHandler, surgeHandler)

	engine := gin.Default()
	router.Setup(engine)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// The three scheduled sweeps and the two event consumers run as
	// independent goroutines sharing this process. Each is cancel-aware:
	// ctx cancellation on SIGINT/SIGTERM lets any in-flight transaction
	// commit or roll back cleanly before exit.
	go offerScheduler.Run(ctx)
	go outboxRelay.Run(ctx)
	go reconciler.Run(ctx)
	go runConsumer(ctx, sugar, eventBus, bus.TopicTripEnded, "payment-orchestrator", payment.TripEndedHandler(orchestrator))
	go runConsumer(ctx, sugar, eventBus, bus.TopicSupplyDemandSnapshot, "surge-calculator", surge.SupplyDemandSnapshotHandler(surgeCalculator))

	go func() {
		sugar.Infow("starting ridecore server", "addr", cfg.Server.Port, "region", cfg.Region)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutdown signal received, draining in-flight requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown did not complete cleanly", "error", err)
	}
}

// runConsumer drives one bus.Subscriber.Subscribe call and logs a fatal-free
// warning on exit so one topic's consumer dying doesn't take the process
// down — the three schedulers and the HTTP server keep running regardless.
func runConsumer(ctx context.Context, log *zap.SugaredLogger, sub bus.Subscriber, topic, queueGroup string, handler bus.Handler) {
	if err := sub.Subscribe(ctx, topic, queueGroup, handler); err != nil && ctx.Err() == nil {
		log.Warnw("event consumer stopped unexpectedly", "topic", topic, "error", err)
	}
}
