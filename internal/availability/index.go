// Package availability answers overlap questions against the active set
// of a unit: reservations in pending, confirmed or blocked status.
//
// Reads through Index are advisory.  They label slot grids and let an
// owner open the booking behind a slot, but the ledger repeats the check
// inside its per-unit critical section before inserting anything.
package availability

import (
	"context"
	"time"

	"github.com/iliyamo/turf-reservation/internal/model"
)

// Source returns the active reservations of a unit that intersect
// [start, end).  It is implemented by the MySQL repository, the
// in-memory ledger store and Intervals.
type Source interface {
	ActiveOverlapping(ctx context.Context, unitID uint64, start, end time.Time) ([]model.Reservation, error)
}

// Index wraps a Source with the queries the rest of the system asks.
type Index struct {
	src Source
}

// New returns an Index reading from src.
func New(src Source) *Index {
	if src == nil {
		panic("nil source passed to availability.New")
	}
	return &Index{src: src}
}

// Overlaps reports whether any active reservation of unitID intersects
// [start, end).
func (x *Index) Overlaps(ctx context.Context, unitID uint64, start, end time.Time) (bool, error) {
	r, err := x.ActiveReservation(ctx, unitID, start, end)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// ActiveReservation returns the earliest active reservation of unitID
// intersecting [start, end), or nil when the range is free.
func (x *Index) ActiveReservation(ctx context.Context, unitID uint64, start, end time.Time) (*model.Reservation, error) {
	if !end.After(start) {
		return nil, nil
	}
	list, err := x.src.ActiveOverlapping(ctx, unitID, start, end)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Status.Active() && list[i].Overlaps(start, end) {
			r := list[i]
			return &r, nil
		}
	}
	return nil, nil
}

// ActiveBetween returns every active reservation of unitID intersecting
// [from, to).  It serves a whole day grid with one query.
func (x *Index) ActiveBetween(ctx context.Context, unitID uint64, from, to time.Time) ([]model.Reservation, error) {
	if !to.After(from) {
		return nil, nil
	}
	list, err := x.src.ActiveOverlapping(ctx, unitID, from, to)
	if err != nil {
		return nil, err
	}
	out := list[:0:0]
	for _, r := range list {
		if r.Status.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}
