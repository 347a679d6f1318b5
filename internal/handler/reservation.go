package handler

// This file defines the player facing handlers: the public slot grid,
// booking, and the caller's own reservations.  Owners reuse Create to
// record walk-in customers.

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/middleware"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/service"
)

// ReservationHandler serves slot grids and reservation requests.
type ReservationHandler struct {
	Service *service.BookingService
}

// NewReservationHandler panics if svc is nil.
func NewReservationHandler(svc *service.BookingService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Service: svc}
}

// createRequest is the body of POST /v1/units/:id/reservations.  Source
// defaults to online; walk-in is accepted from owners only.
type createRequest struct {
	Selections []model.Interval `json:"selections"`
	Source     string           `json:"source"`
	GuestName  string           `json:"guest_name"`
	GuestPhone string           `json:"guest_phone"`
}

// Slots handles GET /v1/units/:id/slots?date=YYYY-MM-DD.  Each slot is
// tagged available or booked.  The response is advisory and may be served
// from cache.
func (h *ReservationHandler) Slots(c echo.Context) error {
	unitID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid unit id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return badRequest(c, "date is required")
	}
	slots, err := h.Service.GenerateSlots(c.Request().Context(), unitID, date)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"unit_id": unitID,
		"date":    date,
		"items":   slots,
		"count":   len(slots),
	})
}

// Create handles POST /v1/units/:id/reservations.  It answers 201 when
// every batch was booked and 207 when only some were; the failures list
// the batches that were not.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	unitID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid unit id")
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Selections) == 0 {
		return badRequest(c, "selections must not be empty")
	}
	source := model.SourceOnline
	if req.Source != "" {
		if source, err = model.ParseSource(req.Source); err != nil {
			return badRequest(c, err.Error())
		}
	}
	switch {
	case source == model.SourceOwnerBlock:
		return badRequest(c, "use the owner blocks endpoint to block time")
	case source == model.SourceWalkIn && middleware.Role(c) != middleware.RoleOwner:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only owners can record walk-in bookings"})
	}

	res, err := h.Service.CreateReservation(c.Request().Context(), service.CreateRequest{
		UnitID:     unitID,
		Selections: req.Selections,
		Source:     source,
		ActorID:    uid,
		GuestName:  req.GuestName,
		GuestPhone: req.GuestPhone,
	})
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusCreated
	if res.Partial() {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, res)
}

// ListMine handles GET /v1/my-reservations.  The optional filters of the
// owner listing apply.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	f.UnitID = nil
	f.RequesterID = &uid
	items, err := h.Service.ListReservations(c.Request().Context(), f, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(items), "count": len(items)})
}

// Get handles GET /v1/reservations/:id for the requester or the owner of
// the venue.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.Service.GetReservation(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": r})
}

// Cancel handles DELETE /v1/reservations/:id.  Reservations are never
// deleted; the record moves to cancelled and its slots are released.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	if err := h.Service.CancelReservation(c.Request().Context(), id, uid); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func nonNil(items []model.Reservation) []model.Reservation {
	if items == nil {
		return []model.Reservation{}
	}
	return items
}
