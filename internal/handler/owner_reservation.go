package handler

// This file defines the owner console: venue listings, the approval
// queue, manual record edits and blocked time.  Routes are guarded by the
// OWNER role; ownership of the venue or unit is checked by the service.

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/service"
)

// OwnerReservationHandler serves venue owners.
type OwnerReservationHandler struct {
	Service *service.BookingService
}

// NewOwnerReservationHandler panics if svc is nil.
func NewOwnerReservationHandler(svc *service.BookingService) *OwnerReservationHandler {
	if svc == nil {
		panic("nil service passed to NewOwnerReservationHandler")
	}
	return &OwnerReservationHandler{Service: svc}
}

// blockRequest is the body of POST /v1/owner/units/:id/blocks.
type blockRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// ListVenueReservations handles GET /v1/owner/venues/:id/reservations.
// Optional filters: status, source, unit, from and to (RFC 3339).  The
// completed status is derived from the end time when filtering.
func (h *OwnerReservationHandler) ListVenueReservations(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	venueID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	f.VenueID = &venueID
	items, err := h.Service.ListReservations(c.Request().Context(), f, ownerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(items), "count": len(items)})
}

// PendingCount handles GET /v1/owner/venues/:id/pending-count.
func (h *OwnerReservationHandler) PendingCount(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	venueID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	n, err := h.Service.PendingCount(c.Request().Context(), venueID, ownerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"venue_id": venueID, "pending": n})
}

// Confirm handles POST /v1/owner/reservations/:id/confirm.
func (h *OwnerReservationHandler) Confirm(c echo.Context) error {
	return h.transition(c, h.Service.ConfirmReservation)
}

// Reject handles POST /v1/owner/reservations/:id/reject.
func (h *OwnerReservationHandler) Reject(c echo.Context) error {
	return h.transition(c, h.Service.RejectReservation)
}

func (h *OwnerReservationHandler) transition(c echo.Context, op func(ctx context.Context, id, actorID uint64) error) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx := c.Request().Context()
	if err := op(ctx, id, ownerID); err != nil {
		return respondError(c, err)
	}
	r, err := h.Service.GetReservation(ctx, id, ownerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": r})
}

// Update handles PATCH /v1/owner/reservations/:id.  Only walk-in and
// owner-block records are editable; time and unit changes go through
// cancel and recreate.
func (h *OwnerReservationHandler) Update(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var fields model.ManualUpdate
	if err := c.Bind(&fields); err != nil {
		return badRequest(c, "invalid request body")
	}
	r, err := h.Service.UpdateManualReservation(c.Request().Context(), id, fields, ownerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": r})
}

// Block handles POST /v1/owner/units/:id/blocks.
func (h *OwnerReservationHandler) Block(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	unitID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid unit id")
	}
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	id, err := h.Service.BlockSlot(c.Request().Context(), unitID, req.Start, req.End, req.Reason, ownerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}
