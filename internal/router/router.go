package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated slot grid.  cache wraps the
// route so repeated grid reads are served from Redis; pass nil to disable.
func RegisterPublic(e *echo.Echo, h *handler.ReservationHandler, cache echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if cache != nil {
		mw = append(mw, cache)
	}
	e.GET("/v1/units/:id/slots", h.Slots, mw...)
}
