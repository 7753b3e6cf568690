// Package handlers translates HTTP requests into calls against the
// dispatch and surge services and maps their results (including apperr
// sentinel errors) back onto HTTP responses.
package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridecore/internal/api/middleware"
	"ridecore/internal/apperr"
	"ridecore/internal/domain/entities"
	"ridecore/internal/idempotency"
	"ridecore/internal/services/dispatch"
)

// idempotencyService namespaces the hash-conflict cache for ride creation.
const idempotencyService = "dispatch"

// RideHandler groups the ride lifecycle endpoints.
type RideHandler struct {
	engine        *dispatch.Engine
	idemStore     idempotency.Store
	idemTTL       time.Duration
	defaultRegion string
}

// NewRideHandler wires the dispatch engine behind the ride endpoints.
// defaultRegion is used when a request carries no region header — the
// deployment's home region.
func NewRideHandler(engine *dispatch.Engine, idemStore idempotency.Store, idemTTL time.Duration, defaultRegion string) *RideHandler {
	return &RideHandler{engine: engine, idemStore: idemStore, idemTTL: idemTTL, defaultRegion: defaultRegion}
}

// LocationRequest is a lat/lng pair in the API request shape, kept distinct
// from entities.Location so the wire format and the domain type can evolve
// independently.
type LocationRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

func (l LocationRequest) toEntity() entities.Location {
	return entities.Location{Latitude: l.Lat, Longitude: l.Lng}
}

// CreateRideRequest is the JSON body for POST /rides.
type CreateRideRequest struct {
	Pickup        LocationRequest      `json:"pickup" binding:"required"`
	Destination   LocationRequest      `json:"destination" binding:"required"`
	RequiredTier  entities.VehicleTier `json:"required_tier" binding:"required,vehicletier"`
	PaymentMethod string               `json:"payment_method" binding:"required"`
	RiderID       string               `json:"rider_id" binding:"required"`
}

// CreateRideResponse carries the new ride's id and initial status.
type CreateRideResponse struct {
	RideID string              `json:"ride_id"`
	Status entities.RideStatus `json:"status"`
}

// CreateRide handles POST /rides. The Idempotency-Key header is enforced
// by middleware.RequireIdempotencyKey upstream; here the raw body is hashed
// and checked against the idempotency cache before the request is bound, so
// a replay with a different body is rejected as a conflict.
func (h *RideHandler) CreateRide(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	key := middleware.GetIdempotencyKey(c)
	conflict, err := h.idemStore.Check(c.Request.Context(), idempotencyService, key, idempotency.Hash(raw), h.idemTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if conflict {
		writeAppErr(c, apperr.IdempotencyMismatch())
		return
	}

	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	regionID := middleware.GetRegionID(c)
	if regionID == "" {
		regionID = h.defaultRegion
	}

	tenantID := middleware.GetTenantID(c)
	summary, err := h.engine.CreateRide(c.Request.Context(), dispatch.CreateRideRequest{
		TenantID:      tenantID,
		RegionID:      regionID,
		RiderID:       req.RiderID,
		Pickup:        req.Pickup.toEntity(),
		Destination:   req.Destination.toEntity(),
		RequiredTier:  req.RequiredTier,
		PaymentMethod: req.PaymentMethod,
	}, key)
	if err != nil {
		writeAppErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateRideResponse{RideID: summary.RideID, Status: summary.Status})
}

// GetRide handles GET /rides/:id.
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID := c.Param("id")
	ride, err := h.engine.GetRideSummary(c.Request.Context(), rideID)
	if err != nil {
		writeAppErr(c, err)
		return
	}
	if ride == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
		return
	}
	c.JSON(http.StatusOK, ride)
}

// Accept handles POST /rides/:id/accept?driverId=....
func (h *RideHandler) Accept(c *gin.Context) {
	rideID := c.Param("id")
	driverID := c.Query("driverId")
	ride, err := h.engine.Accept(c.Request.Context(), rideID, driverID)
	if err != nil {
		writeAppErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride_id": ride.ID, "status": ride.Status})
}

// Decline handles POST /rides/:id/decline?driverId=....
func (h *RideHandler) Decline(c *gin.Context) {
	if err := h.engine.Decline(c.Request.Context(), c.Param("id"), c.Query("driverId")); err != nil {
		writeAppErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DriverArrived handles POST /rides/:id/driver-arrived?driverId=....
func (h *RideHandler) DriverArrived(c *gin.Context) {
	if err := h.engine.DriverArrived(c.Request.Context(), c.Param("id"), c.Query("driverId")); err != nil {
		writeAppErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start handles POST /rides/:id/start?driverId=....
func (h *RideHandler) Start(c *gin.Context) {
	if err := h.engine.Start(c.Request.Context(), c.Param("id"), c.Query("driverId")); err != nil {
		writeAppErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Cancel handles POST /rides/:id/cancel?requesterId=....
func (h *RideHandler) Cancel(c *gin.Context) {
	if err := h.engine.Cancel(c.Request.Context(), c.Param("id"), c.Query("requesterId")); err != nil {
		writeAppErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeAppErr maps an apperr.Kind to its HTTP status — the only place the
// mapping exists.
func writeAppErr(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusBadRequest
	switch appErr.Kind {
	case apperr.KindPrecondition:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnavailable:
		status = http.StatusServiceUnavailable
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindTransient, apperr.KindPermanent:
		status = http.StatusBadGateway
	}
	switch appErr.Code {
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeRideAlreadyAccepted:
		// Losing an accept race is a clean 400 so the driver app can show
		// a "too late" screen; 409 is reserved for idempotency-hash
		// mismatches.
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
}
