// Package service exposes the booking operations used by the HTTP
// handlers.  It composes the schedule rules, the availability index and
// the ledger, and publishes an event after every committed change.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/availability"
	"github.com/iliyamo/turf-reservation/internal/ledger"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/queue"
	"github.com/iliyamo/turf-reservation/internal/schedule"
)

// Catalog resolves units, venues and sport prices.
type Catalog interface {
	ledger.Directory
	// Sport returns the price row of code, or ErrNotFound.
	Sport(ctx context.Context, code string) (*model.Sport, error)
}

// Notifier receives reservation events after commit.  Implementations
// must not block for long; failures are theirs to log.
type Notifier interface {
	Notify(ctx context.Context, ev queue.ReservationEvent)
}

// Deps groups the collaborators of BookingService.
type Deps struct {
	Ledger       *ledger.Ledger
	Approval     *ledger.Approval
	Availability *availability.Index
	Catalog      Catalog
	Calendar     schedule.Calendar
	Pricing      schedule.Pricing
	Notifiers    []Notifier
}

// BookingService implements the reservation operation surface.
type BookingService struct {
	ledger    *ledger.Ledger
	approval  *ledger.Approval
	index     *availability.Index
	catalog   Catalog
	cal       schedule.Calendar
	pricing   schedule.Pricing
	notifiers []Notifier
}

func NewBookingService(d Deps) *BookingService {
	if d.Ledger == nil || d.Approval == nil || d.Availability == nil || d.Catalog == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{
		ledger:    d.Ledger,
		approval:  d.Approval,
		index:     d.Availability,
		catalog:   d.Catalog,
		cal:       d.Calendar,
		pricing:   d.Pricing,
		notifiers: d.Notifiers,
	}
}

// CreateRequest is one submission of selected time ranges on a unit.
type CreateRequest struct {
	UnitID     uint64
	Selections []model.Interval
	Source     model.Source
	ActorID    uint64
	GuestName  string
	GuestPhone string
	Reason     string
}

// BatchFailure reports a batch the ledger refused.
type BatchFailure struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
	Err    error     `json:"-"`
}

// CreateResult lists the reservations created by one submission.  A
// non-empty Failures means the submission was only partially booked.
type CreateResult struct {
	ReservationIDs []uint64       `json:"reservation_ids"`
	Failures       []BatchFailure `json:"failures,omitempty"`
}

// Partial reports whether some batches failed while others succeeded.
func (r *CreateResult) Partial() bool { return len(r.Failures) > 0 }

// GenerateSlots returns the slot grid of unitID on date (YYYY-MM-DD),
// each slot tagged available or booked.
func (s *BookingService) GenerateSlots(ctx context.Context, unitID uint64, date string) ([]model.Slot, error) {
	unit, err := s.catalog.Unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	day, err := s.cal.Day(date)
	if err != nil {
		return nil, err
	}
	sport, err := s.sport(ctx, unit.SportType)
	if err != nil {
		return nil, err
	}
	price, err := s.pricing.SlotPrice(*unit, sport)
	if err != nil {
		return nil, err
	}
	slots := s.cal.Generate(*unit, day, price)
	if len(slots) == 0 {
		return slots, nil
	}
	active, err := s.index.ActiveBetween(ctx, unit.ID, slots[0].Start, slots[len(slots)-1].End)
	if err != nil {
		return nil, err
	}
	return s.cal.Tag(slots, active), nil
}

// CreateReservation validates the whole submission, then asks the ledger
// for one reservation per contiguous batch.  Validation failures reject
// everything; ledger failures are reported per batch.
func (s *BookingService) CreateReservation(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if _, err := model.ParseSource(string(req.Source)); err != nil {
		return nil, apperror.Validation("%v", err)
	}
	var (
		unit *model.Unit
		err  error
	)
	if req.Source.Manual() {
		unit, err = s.approval.AuthorizeUnit(ctx, req.UnitID, req.ActorID)
	} else {
		unit, err = s.catalog.Unit(ctx, req.UnitID)
	}
	if err != nil {
		return nil, err
	}

	var hourly int64
	if req.Source != model.SourceOwnerBlock {
		sport, err := s.sport(ctx, unit.SportType)
		if err != nil {
			return nil, err
		}
		if hourly, err = s.pricing.HourlyRate(*unit, sport); err != nil {
			return nil, err
		}
	}

	slots, err := s.cal.SlotsFromSelections(*unit, req.Selections)
	if err != nil {
		return nil, err
	}
	batches := schedule.Group(slots)
	if err := schedule.Validate(batches, schedule.MinSessionSlots); err != nil {
		return nil, err
	}

	var requester *uint64
	if req.Source == model.SourceOnline {
		id := req.ActorID
		requester = &id
	}

	res := &CreateResult{}
	var errs []error
	for _, b := range batches {
		d := ledger.Draft{
			UnitID:      unit.ID,
			VenueID:     unit.VenueID,
			Start:       b.Start(),
			End:         b.End(),
			Source:      req.Source,
			PriceCents:  s.pricing.BatchPrice(b, hourly),
			RequesterID: requester,
			GuestName:   req.GuestName,
			GuestPhone:  req.GuestPhone,
			Reason:      req.Reason,
		}
		id, err := s.ledger.Create(ctx, d)
		if err != nil {
			res.Failures = append(res.Failures, BatchFailure{Start: b.Start(), End: b.End(), Reason: err.Error(), Err: err})
			errs = append(errs, err)
			continue
		}
		res.ReservationIDs = append(res.ReservationIDs, id)
		s.notifyID(ctx, queue.EventCreated, id, req.ActorID)
	}
	if len(res.ReservationIDs) == 0 {
		if len(errs) == 1 {
			return nil, errs[0]
		}
		return nil, errors.Join(errs...)
	}
	if res.Partial() {
		log.Warnf("unit %d: %d of %d batches could not be booked", unit.ID, len(res.Failures), len(batches))
	}
	return res, nil
}

// BlockSlot reserves [start, end) of a unit for the owner with no
// customer attached.
func (s *BookingService) BlockSlot(ctx context.Context, unitID uint64, start, end time.Time, reason string, actorID uint64) (uint64, error) {
	res, err := s.CreateReservation(ctx, CreateRequest{
		UnitID:     unitID,
		Selections: []model.Interval{{Start: start, End: end}},
		Source:     model.SourceOwnerBlock,
		ActorID:    actorID,
		Reason:     reason,
	})
	if err != nil {
		return 0, err
	}
	return res.ReservationIDs[0], nil
}

// ListReservations returns the reservations matching f that actorID may
// see: a venue it owns, a unit of such a venue, or its own requests.
func (s *BookingService) ListReservations(ctx context.Context, f model.ReservationFilter, actorID uint64) ([]model.Reservation, error) {
	switch {
	case f.VenueID != nil:
		if _, err := s.approval.AuthorizeVenue(ctx, *f.VenueID, actorID); err != nil {
			return nil, err
		}
	case f.UnitID != nil:
		if _, err := s.approval.AuthorizeUnit(ctx, *f.UnitID, actorID); err != nil {
			return nil, err
		}
	case f.RequesterID != nil:
		if *f.RequesterID != actorID {
			return nil, apperror.Forbidden("cannot list another player's reservations")
		}
	default:
		return nil, apperror.Validation("a venue, unit or requester filter is required")
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, apperror.Validation("date range end must be after its start")
	}
	return s.ledger.List(ctx, f)
}

// GetReservation returns one reservation visible to actorID.
func (s *BookingService) GetReservation(ctx context.Context, id, actorID uint64) (*model.Reservation, error) {
	return s.approval.Get(ctx, id, actorID)
}

// ConfirmReservation confirms a pending reservation.
func (s *BookingService) ConfirmReservation(ctx context.Context, id, actorID uint64) error {
	r, err := s.approval.Confirm(ctx, id, actorID)
	if err != nil {
		return err
	}
	s.notify(ctx, queue.EventConfirmed, *r, actorID)
	return nil
}

// RejectReservation rejects a pending reservation.
func (s *BookingService) RejectReservation(ctx context.Context, id, actorID uint64) error {
	r, err := s.approval.Reject(ctx, id, actorID)
	if err != nil {
		return err
	}
	s.notify(ctx, queue.EventRejected, *r, actorID)
	return nil
}

// CancelReservation cancels a reservation that has not started yet.
func (s *BookingService) CancelReservation(ctx context.Context, id, actorID uint64) error {
	r, err := s.approval.Cancel(ctx, id, actorID)
	if err != nil {
		return err
	}
	s.notify(ctx, queue.EventCancelled, *r, actorID)
	return nil
}

// UpdateManualReservation edits a walk-in or owner-block record.
func (s *BookingService) UpdateManualReservation(ctx context.Context, id uint64, fields model.ManualUpdate, actorID uint64) (*model.Reservation, error) {
	r, err := s.approval.Update(ctx, id, fields, actorID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, queue.EventUpdated, *r, actorID)
	return r, nil
}

// PendingCount returns the number of reservations awaiting approval at
// a venue owned by actorID.
func (s *BookingService) PendingCount(ctx context.Context, venueID, actorID uint64) (int, error) {
	return s.approval.PendingCountForOwner(ctx, venueID, actorID)
}

// AuthorizeVenue reports whether actorID owns venueID.
func (s *BookingService) AuthorizeVenue(ctx context.Context, venueID, actorID uint64) error {
	_, err := s.approval.AuthorizeVenue(ctx, venueID, actorID)
	return err
}

func (s *BookingService) sport(ctx context.Context, code string) (*model.Sport, error) {
	sp, err := s.catalog.Sport(ctx, code)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	return sp, err
}

func (s *BookingService) notifyID(ctx context.Context, typ string, id, actorID uint64) {
	if len(s.notifiers) == 0 {
		return
	}
	r, err := s.ledger.Get(ctx, id)
	if err != nil {
		log.Warnf("event %s #%d: reload failed: %v", typ, id, err)
		return
	}
	s.notify(ctx, typ, *r, actorID)
}

// notify runs after the change is committed; the request context may be
// cancelled by then, so notifiers get a detached one.
func (s *BookingService) notify(ctx context.Context, typ string, r model.Reservation, actorID uint64) {
	if len(s.notifiers) == 0 {
		return
	}
	ev := queue.NewReservationEvent(typ, r, actorID, s.ledger.Now())
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for _, n := range s.notifiers {
		n.Notify(dctx, ev)
	}
}
