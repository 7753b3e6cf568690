// Package api assembles the gin router: route groups, per-group
// middleware, and handler wiring. Dispatch and surge are the only two
// components with an HTTP surface.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/api/handlers"
	"ridecore/internal/api/middleware"
)

// Router wires the dispatch and surge REST surfaces onto a gin engine.
type Router struct {
	rideHandler  *handlers.RideHandler
	surgeHandler *handlers.SurgeHandler
}

func NewRouter(rideHandler *handlers.RideHandler, surgeHandler *handlers.SurgeHandler) *Router {
	return &Router{rideHandler: rideHandler, surgeHandler: surgeHandler}
}

// Setup registers every route group. The gateway normally enforces the
// tenant header before a request reaches us, but the core still requires it
// here; idempotency enforcement applies only to ride creation.
func (r *Router) Setup(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/", middleware.RequireTenant())

	rides := api.Group("/rides")
	rides.POST("", middleware.RequireIdempotencyKey(), r.rideHandler.CreateRide)
	rides.GET("/:id", r.rideHandler.GetRide)
	rides.POST("/:id/accept", r.rideHandler.Accept)
	rides.POST("/:id/decline", r.rideHandler.Decline)
	rides.POST("/:id/driver-arrived", r.rideHandler.DriverArrived)
	rides.POST("/:id/start", r.rideHandler.Start)
	rides.POST("/:id/cancel", r.rideHandler.Cancel)

	surge := api.Group("/surge")
	surge.GET("/:cellId", r.surgeHandler.GetByCell)
	surge.GET("", r.surgeHandler.GetByLatLng)
}
