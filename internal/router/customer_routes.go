package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/handler"
	"github.com/iliyamo/turf-reservation/internal/middleware"
)

// RegisterCustomer registers the booking endpoints under /v1.  All routes
// require a valid JWT.  Players and owners share them: owners record
// walk-in customers through the same create endpoint.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleOwner, middleware.RoleCustomer),
	)
	g.POST("/units/:id/reservations", h.Create)
	g.GET("/my-reservations", h.ListMine)
	g.GET("/reservations/:id", h.Get)
	g.DELETE("/reservations/:id", h.Cancel)
}
