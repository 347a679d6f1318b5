// Package ledger owns reservation records and their lifecycle.  Ledger is
// the only component that mutates reservations; Approval layers actor
// authorization on top of it.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/schedule"
)

// Draft is a reservation about to be created.  The initial status is
// derived from Source.
type Draft struct {
	UnitID      uint64
	VenueID     uint64
	Start       time.Time
	End         time.Time
	Source      model.Source
	PriceCents  int64
	RequesterID *uint64
	GuestName   string
	GuestPhone  string
	Reason      string
}

// Ledger applies the reservation state machine over a Store.
type Ledger struct {
	store       Store
	locker      UnitLocker
	now         func() time.Time
	granularity time.Duration
	minSlots    int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocker replaces the in-process unit locker, e.g. with a Redis lock
// shared by several instances.
func WithLocker(locker UnitLocker) Option {
	return func(l *Ledger) { l.locker = locker }
}

// New returns a Ledger writing to store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		locker:      NewLocalLocker(),
		now:         time.Now,
		granularity: schedule.DefaultGranularity,
		minSlots:    schedule.MinSessionSlots,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time { return l.now() }

// Create checks availability and inserts d as one atomic step per unit.
// The check is repeated here even when the caller already looked at the
// slot grid; a concurrent create that won the race yields a ConflictError.
func (l *Ledger) Create(ctx context.Context, d Draft) (uint64, error) {
	if err := l.checkDraft(d); err != nil {
		return 0, err
	}
	unlock, err := l.locker.LockUnit(ctx, d.UnitID)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
			log.Warnf("ledger: unit %d: %v", d.UnitID, err)
			return 0, &apperror.ConflictError{UnitID: d.UnitID, Start: d.Start, End: d.End}
		}
		return 0, err
	}
	defer unlock()

	r := &model.Reservation{
		UnitID:          d.UnitID,
		VenueID:         d.VenueID,
		StartTime:       d.Start.UTC(),
		EndTime:         d.End.UTC(),
		Status:          d.Source.InitialStatus(),
		Source:          d.Source,
		RequesterID:     d.RequesterID,
		GuestName:       d.GuestName,
		GuestPhone:      d.GuestPhone,
		Reason:          d.Reason,
		TotalPriceCents: d.PriceCents,
	}
	return l.store.CreateIfFree(ctx, r)
}

func (l *Ledger) checkDraft(d Draft) error {
	if _, err := model.ParseSource(string(d.Source)); err != nil {
		return apperror.Validation("%v", err)
	}
	if !d.End.After(d.Start) {
		return apperror.Validation("end must be after start")
	}
	length := d.End.Sub(d.Start)
	if length%l.granularity != 0 {
		return apperror.Validation("reservation length %s is not a multiple of %s", length, l.granularity)
	}
	if int(length/l.granularity) < l.minSlots {
		return &apperror.ValidationError{
			Message: "session shorter than minimum length",
			Batches: []apperror.BatchIssue{{Start: d.Start, End: d.End, Slots: int(length / l.granularity), Reason: "too short"}},
		}
	}
	if d.PriceCents < 0 {
		return apperror.Validation("negative price")
	}
	now := l.now()
	if d.Source == model.SourceOnline && !d.Start.After(now) {
		return apperror.Validation("cannot book a session that has already started")
	}
	if !d.End.After(now) {
		return apperror.Validation("cannot record a session that has already ended")
	}
	return nil
}

// Get returns reservation id with its effective status.
func (l *Ledger) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Status = r.EffectiveStatus(l.now())
	return r, nil
}

// Confirm moves a pending reservation to confirmed.
func (l *Ledger) Confirm(ctx context.Context, id uint64) error {
	return withOp(l.store.SetStatus(ctx, id, model.StatusPending, model.StatusConfirmed), "confirm")
}

// Reject moves a pending reservation to rejected, freeing its slots.
func (l *Ledger) Reject(ctx context.Context, id uint64) error {
	return withOp(l.store.SetStatus(ctx, id, model.StatusPending, model.StatusRejected), "reject")
}

// Cancel moves a pending, confirmed or blocked reservation to cancelled
// while its start is still in the future.
func (l *Ledger) Cancel(ctx context.Context, id uint64) error {
	r, err := l.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !r.Status.Active() {
		return &apperror.StateError{ReservationID: id, Op: "cancel", Status: string(r.EffectiveStatus(l.now()))}
	}
	if !r.StartTime.After(l.now()) {
		return &apperror.StateError{ReservationID: id, Op: "cancel after start", Status: string(r.EffectiveStatus(l.now()))}
	}
	return withOp(l.store.SetStatus(ctx, id, r.Status, model.StatusCancelled), "cancel")
}

// Update edits the guest, price and reason fields of a walk-in or
// owner-block record.
func (l *Ledger) Update(ctx context.Context, id uint64, u model.ManualUpdate) error {
	if u.Empty() {
		return apperror.Validation("nothing to update")
	}
	if u.TotalPriceCents != nil && *u.TotalPriceCents < 0 {
		return apperror.Validation("negative price")
	}
	r, err := l.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !r.Source.Manual() {
		return &apperror.StateError{ReservationID: id, Op: "update " + string(r.Source) + " reservation", Status: string(r.EffectiveStatus(l.now()))}
	}
	return withOp(l.store.UpdateManual(ctx, id, u), "update")
}

// List returns the reservations matching f with effective statuses.
func (l *Ledger) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	f.AsOf = l.now()
	list, err := l.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Status = list[i].EffectiveStatus(f.AsOf)
	}
	return list, nil
}

// ListByOwner lists the reservations of one venue.
func (l *Ledger) ListByOwner(ctx context.Context, venueID uint64, f model.ReservationFilter) ([]model.Reservation, error) {
	f.VenueID = &venueID
	return l.List(ctx, f)
}

// PendingCount returns the number of pending reservations of venueID.
func (l *Ledger) PendingCount(ctx context.Context, venueID uint64) (int, error) {
	return l.store.CountByVenueStatus(ctx, venueID, model.StatusPending)
}

// CompleteElapsed stores completed for confirmed reservations that have
// ended.
func (l *Ledger) CompleteElapsed(ctx context.Context) (int64, error) {
	return l.store.CompleteEnded(ctx, l.now())
}

func withOp(err error, op string) error {
	var se *apperror.StateError
	if errors.As(err, &se) && se.Op == "" {
		se.Op = op
	}
	return err
}
