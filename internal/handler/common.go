package handler // handler defines the HTTP handlers of the reservation API

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/middleware"
	"github.com/iliyamo/turf-reservation/internal/model"
)

var errUnauthorized = errors.New("unauthorized")

// getUserID returns the caller id stored by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errUnauthorized
	}
	return id, nil
}

// pathID parses the :id path parameter.  Zero is rejected.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}

// respondError writes err as {"error": "..."} with the matching status.
// Validation errors also list the offending batches.
func respondError(c echo.Context, err error) error {
	status := apperror.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": err.Error()}
	var ve *apperror.ValidationError
	if errors.As(err, &ve) && len(ve.Batches) > 0 {
		body["batches"] = ve.Batches
	}
	var ce *apperror.ConflictError
	if errors.As(err, &ce) && ce.ExistingID != 0 {
		body["existing_id"] = ce.ExistingID
	}
	return c.JSON(status, body)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// parseFilter reads the optional status, source, unit, from and to query
// parameters.  Times are RFC 3339.
func parseFilter(c echo.Context) (model.ReservationFilter, error) {
	var f model.ReservationFilter
	if v := c.QueryParam("status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if v := c.QueryParam("source"); v != "" {
		src, err := model.ParseSource(v)
		if err != nil {
			return f, err
		}
		f.Source = &src
	}
	if v := c.QueryParam("unit"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return f, errors.New("invalid unit")
		}
		f.UnitID = &id
	}
	var err error
	if f.From, err = queryTime(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func queryTime(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.New("invalid " + name + ": expected RFC 3339 time")
	}
	return &t, nil
}
