package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridecore/internal/api/middleware"
	"ridecore/internal/geo"
	"ridecore/internal/services/surge"
)

// SurgeHandler serves the surge lookups: by cell id, and by lat/lng
// resolved to the enclosing H3 cell first.
type SurgeHandler struct {
	calculator *surge.Calculator
}

func NewSurgeHandler(calculator *surge.Calculator) *SurgeHandler {
	return &SurgeHandler{calculator: calculator}
}

// SurgeResponse is the `{geoCell, surgeMultiplier}` response shape.
type SurgeResponse struct {
	GeoCell         string  `json:"geoCell"`
	SurgeMultiplier float64 `json:"surgeMultiplier"`
}

// GetByCell handles GET /surge/:cellId.
func (h *SurgeHandler) GetByCell(c *gin.Context) {
	cellID := c.Param("cellId")
	h.respond(c, cellID)
}

// GetByLatLng handles GET /surge?lat=&lng=, resolving the coordinate to its
// resolution-8 H3 cell before the lookup.
func (h *SurgeHandler) GetByLatLng(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing lat"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing lng"})
		return
	}
	h.respond(c, geo.SurgeCell(lat, lng))
}

func (h *SurgeHandler) respond(c *gin.Context, cellID string) {
	tenantID := middleware.GetTenantID(c)
	multiplier, err := h.calculator.Get(c.Request.Context(), tenantID, cellID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, SurgeResponse{GeoCell: cellID, SurgeMultiplier: multiplier})
}
