// Package apperror defines the error taxonomy shared by the scheduling
// core and its transports.  Each failure class has a sentinel value so
// callers can branch with errors.Is, and richer types carry the details a
// caller needs to react (the conflicting interval, the offending batches,
// the status a transition was attempted from).
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrConflict is returned when a requested interval overlaps an
	// active reservation.  It is never retried by the core.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned for short batches, malformed ranges and
	// missing price configuration.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState is returned when a transition is attempted from a
	// status that does not permit it.
	ErrInvalidState = errors.New("invalid state")
	// ErrForbidden is returned when the actor has no rights over the
	// unit or reservation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned for unknown units, venues and reservations.
	ErrNotFound = errors.New("not found")
)

// ConflictError describes the interval that could not be reserved.
type ConflictError struct {
	UnitID     uint64
	Start      time.Time
	End        time.Time
	ExistingID uint64 // zero when the blocking record is unknown
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("unit %d: %s overlaps an active reservation", e.UnitID, formatRange(e.Start, e.End))
	if e.ExistingID != 0 {
		msg += fmt.Sprintf(" (#%d)", e.ExistingID)
	}
	return msg
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// BatchIssue names one offending batch of a submission.
type BatchIssue struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Slots  int       `json:"slots"`
	Reason string    `json:"reason"`
}

// ValidationError is returned before anything reaches the ledger.
type ValidationError struct {
	Message string
	Batches []BatchIssue
}

// Validation returns a ValidationError without batch details.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if len(e.Batches) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Batches))
	for _, b := range e.Batches {
		parts = append(parts, fmt.Sprintf("%s (%s)", formatRange(b.Start, b.End), b.Reason))
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StateError reports a rejected transition.
type StateError struct {
	ReservationID uint64
	Op            string
	Status        string
}

func (e *StateError) Error() string {
	op := e.Op
	if op == "" {
		op = "transition"
	}
	return fmt.Sprintf("reservation %d: cannot %s from status %q", e.ReservationID, op, e.Status)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrForbidden)
}

// HTTPStatus maps err onto the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func formatRange(start, end time.Time) string {
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return start.Format("2006-01-02 15:04") + "-" + end.Format("15:04")
	}
	return start.Format("2006-01-02 15:04") + "-" + end.Format("2006-01-02 15:04")
}
