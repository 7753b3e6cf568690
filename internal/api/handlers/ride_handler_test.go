package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ridecore/internal/api"
	"ridecore/internal/api/handlers"
	"ridecore/internal/bus"
	"ridecore/internal/domain/entities"
	"ridecore/internal/flagstore"
	"ridecore/internal/geo"
	"ridecore/internal/idempotency"
	"ridecore/internal/lock"
	"ridecore/internal/repository"
	"ridecore/internal/repository/memory"
	"ridecore/internal/services/dispatch"
	"ridecore/internal/services/surge"
)

// staleVersionRides wraps a RideRepository; while armed it serves reads at
// a stale version, so the next guarded update loses the optimistic-lock
// race exactly as if another writer had landed in between.
type staleVersionRides struct {
	repository.RideRepository
	stale bool
}

func (s *staleVersionRides) GetByID(ctx context.Context, id string) (*entities.Ride, error) {
	r, err := s.RideRepository.GetByID(ctx, id)
	if err == nil && s.stale {
		r.Version--
	}
	return r, err
}

type fixture struct {
	router    http.Handler
	geoIndex  *geo.MemoryIndex
	flagStore *flagstore.MemoryStore
	eventBus  *bus.MemoryBus
	rides     *staleVersionRides
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rides := &staleVersionRides{RideRepository: memory.NewRideRepository()}
	offers := memory.NewDriverOfferRepository()
	geoIndex := geo.NewMemoryIndex(6)
	mutex := lock.NewMemoryMutex()
	t.Cleanup(mutex.Stop)
	flagStore := flagstore.NewMemoryStore()
	eventBus := bus.NewMemoryBus()
	seq := 0
	newID := func() string {
		seq++
		return "api-" + strings.Repeat("x", seq)
	}

	engine := dispatch.New(rides, offers, geoIndex, mutex, flagStore, eventBus, memory.NoopTx, newID, dispatch.Config{
		SearchRadiusKm: 5,
		SearchLimit:    50,
		LockWait:       time.Second,
		LockLease:      5 * time.Second,
		OfferTTL:       15 * time.Second,
		MaxAttempts:    3,
	}, zap.NewNop().Sugar())

	calculator := surge.New(surge.NewMemoryStore(), memory.NewGeoCellRepository(), flagStore, memory.NoopTx, zap.NewNop().Sugar())

	rideHandler := handlers.NewRideHandler(engine, idempotency.NewMemoryStore(), time.Hour, "ap-south-1")
	surgeHandler := handlers.NewSurgeHandler(calculator)

	g := gin.New()
	api.NewRouter(rideHandler, surgeHandler).Setup(g)
	return &fixture{router: g, geoIndex: geoIndex, flagStore: flagStore, eventBus: eventBus, rides: rides}
}

func (f *fixture) seedDriver(t *testing.T, id string) {
	t.Helper()
	meta := entities.NewDriverMetadata(id, "ap-south-1", entities.TierEconomy, entities.NewLocation(12.9716, 77.5946), 4.9, 0.05)
	if err := f.geoIndex.Upsert(context.Background(), meta); err != nil {
		t.Fatalf("seed driver: %v", err)
	}
}

const createBody = `{"pickup":{"lat":12.9716,"lng":77.5946},"destination":{"lat":12.9352,"lng":77.6245},"required_tier":"ECONOMY","payment_method":"card","rider_id":"usr_101"}`

func (f *fixture) post(path, tenant, idemKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestCreateRideHappyPath(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "drv_001")

	w := f.post("/rides", "tenant-a", "ik-1", createBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		RideID string `json:"ride_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != string(entities.RideStatusDispatching) {
		t.Fatalf("expected DISPATCHING, got %s", resp.Status)
	}

	published := f.eventBus.ByPartitionKey(resp.RideID)
	sawOffer := false
	for _, p := range published {
		if p.Topic == bus.TopicDriverOfferSent {
			sawOffer = true
		}
	}
	if !sawOffer {
		t.Fatalf("expected driver.offer.sent on the ride partition, got %+v", published)
	}
}

func TestCreateRideRequiresTenantHeader(t *testing.T) {
	f := newFixture(t)
	if w := f.post("/rides", "", "ik-1", createBody); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without tenant header, got %d", w.Code)
	}
}

func TestCreateRideRequiresIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	if w := f.post("/rides", "tenant-a", "", createBody); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", w.Code)
	}
}

func TestCreateRideKillSwitchReturns503(t *testing.T) {
	f := newFixture(t)
	if err := f.flagStore.Set(context.Background(), "tenant-a", "dispatch_kill_switch", true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	w := f.post("/rides", "tenant-a", "ik-1", createBody)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with kill switch on, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.eventBus.All()) != 0 {
		t.Fatalf("expected no events emitted under the kill switch")
	}
}

func TestCreateRideReplayWithDifferentBodyConflicts(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "drv_001")

	if w := f.post("/rides", "tenant-a", "ik-dup", createBody); w.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d", w.Code)
	}

	altered := strings.Replace(createBody, "usr_101", "usr_999", 1)
	if w := f.post("/rides", "tenant-a", "ik-dup", altered); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for same key with different body, got %d", w.Code)
	}
}

func TestCreateRideRejectsUnknownTier(t *testing.T) {
	f := newFixture(t)
	body := strings.Replace(createBody, "ECONOMY", "HOVERCRAFT", 1)
	if w := f.post("/rides", "tenant-a", "ik-1", body); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown tier, got %d", w.Code)
	}
}

func TestAcceptOptimisticLockLossReturns400(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "drv_001")

	w := f.post("/rides", "tenant-a", "ik-1", createBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		RideID string `json:"ride_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Serve the losing driver's read at a stale version so the guarded
	// update conflicts, as if another driver's accept had just won.
	f.rides.stale = true
	w = f.post("/rides/"+created.RideID+"/accept?driverId=drv_002", "tenant-a", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on optimistic-lock loss, got %d: %s", w.Code, w.Body.String())
	}

	var errResp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != "RIDE_ALREADY_ACCEPTED" {
		t.Fatalf("expected RIDE_ALREADY_ACCEPTED, got %q", errResp.Code)
	}
}

func TestGetRideReturns404ForUnknownID(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/rides/nope", nil)
	req.Header.Set("X-Tenant-ID", "tenant-a")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown ride, got %d", w.Code)
	}
}

func TestSurgeLookupDefaultsToOne(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/surge/8860145191fffff", nil)
	req.Header.Set("X-Tenant-ID", "tenant-a")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		GeoCell         string  `json:"geoCell"`
		SurgeMultiplier float64 `json:"surgeMultiplier"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SurgeMultiplier != 1.0 {
		t.Fatalf("expected default multiplier 1.0, got %v", resp.SurgeMultiplier)
	}
}
