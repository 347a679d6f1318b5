package ledger

import (
	"context"
	"time"

	"github.com/iliyamo/turf-reservation/internal/availability"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// Store persists reservation records.  Implementations: MemoryStore and
// repository.ReservationRepository (MySQL).
//
// CreateIfFree must perform the overlap check and the insert atomically
// for r.UnitID and return a *apperror.ConflictError when an active
// reservation intersects [r.StartTime, r.EndTime).
//
// SetStatus is a compare-and-swap: the row changes only when its current
// status is from.  A mismatch yields *apperror.StateError carrying the
// current status, an unknown id an apperror.ErrNotFound.
type Store interface {
	availability.Source

	CreateIfFree(ctx context.Context, r *model.Reservation) (uint64, error)
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	SetStatus(ctx context.Context, id uint64, from, to model.Status) error
	UpdateManual(ctx context.Context, id uint64, u model.ManualUpdate) error
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error)
	CountByVenueStatus(ctx context.Context, venueID uint64, status model.Status) (int, error)
	// CompleteEnded moves confirmed reservations ending at or before now
	// to completed and returns how many rows changed.
	CompleteEnded(ctx context.Context, now time.Time) (int64, error)
}
