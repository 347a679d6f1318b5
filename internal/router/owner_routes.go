package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/handler"
	"github.com/iliyamo/turf-reservation/internal/middleware"
)

// RegisterOwner registers the owner console under /v1/owner.  All routes
// require a JWT and the OWNER role; the handlers check that the venue or
// unit belongs to the caller.
func RegisterOwner(e *echo.Echo, h *handler.OwnerReservationHandler, live *handler.LiveHandler, jwtSecret string) {
	g := e.Group(
		"/v1/owner",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleOwner),
	)
	g.GET("/venues/:id/reservations", h.ListVenueReservations)
	g.GET("/venues/:id/pending-count", h.PendingCount)
	g.POST("/reservations/:id/confirm", h.Confirm)
	g.POST("/reservations/:id/reject", h.Reject)
	g.PATCH("/reservations/:id", h.Update)
	g.POST("/units/:id/blocks", h.Block)
	if live != nil {
		g.GET("/venues/:id/live", live.Stream)
	}
}
