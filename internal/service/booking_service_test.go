package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/availability"
	"github.com/iliyamo/turf-reservation/internal/ledger"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/queue"
	"github.com/iliyamo/turf-reservation/internal/schedule"
)

const (
	ownerID  uint64 = 100
	playerID uint64 = 5
	rivalID  uint64 = 6
)

var clock = time.Date(2026, 11, 2, 6, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return time.Date(2026, 11, 2, h, m, 0, 0, time.UTC) }

func cents(v int64) *int64 { return &v }

type fakeCatalog struct {
	units  map[uint64]model.Unit
	venues map[uint64]model.Venue
	sports map[string]model.Sport
}

func (c fakeCatalog) Unit(_ context.Context, id uint64) (*model.Unit, error) {
	u, ok := c.units[id]
	if !ok {
		return nil, apperror.NotFound("unit", id)
	}
	return &u, nil
}

func (c fakeCatalog) Venue(_ context.Context, id uint64) (*model.Venue, error) {
	v, ok := c.venues[id]
	if !ok {
		return nil, apperror.NotFound("venue", id)
	}
	return &v, nil
}

func (c fakeCatalog) Sport(_ context.Context, code string) (*model.Sport, error) {
	s, ok := c.sports[code]
	if !ok {
		return nil, apperror.NotFound("sport", code)
	}
	return &s, nil
}

type recorder struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (r *recorder) Notify(_ context.Context, ev queue.ReservationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newService(t *testing.T) (*BookingService, *recorder, *ledger.Ledger) {
	t.Helper()
	cat := fakeCatalog{
		units: map[uint64]model.Unit{
			1: {ID: 1, VenueID: 1, SportType: "football", OpeningHour: 9, ClosingHour: 10, HourlyPriceCents: cents(4000)},
			2: {ID: 2, VenueID: 1, SportType: "football", OpeningHour: 6, ClosingHour: 23},
			3: {ID: 3, VenueID: 1, SportType: "padel", OpeningHour: 6, ClosingHour: 23},
		},
		venues: map[uint64]model.Venue{1: {ID: 1, OwnerID: ownerID}},
		sports: map[string]model.Sport{"football": {Code: "football", DefaultHourlyPriceCents: cents(6000)}},
	}
	store := ledger.NewMemoryStore()
	l := ledger.New(store, ledger.WithClock(func() time.Time { return clock }))
	rec := &recorder{}
	svc := NewBookingService(Deps{
		Ledger:       l,
		Approval:     ledger.NewApproval(l, cat),
		Availability: availability.New(store),
		Catalog:      cat,
		Calendar:     schedule.NewCalendar(time.UTC),
		Pricing:      schedule.Pricing{Granularity: schedule.DefaultGranularity},
		Notifiers:    []Notifier{rec},
	})
	return svc, rec, l
}

func book(svc *BookingService, unit uint64, actor uint64, ranges ...[2]time.Time) (*CreateResult, error) {
	sel := make([]model.Interval, 0, len(ranges))
	for _, r := range ranges {
		sel = append(sel, model.Interval{Start: r[0], End: r[1]})
	}
	return svc.CreateReservation(context.Background(), CreateRequest{UnitID: unit, Selections: sel, Source: model.SourceOnline, ActorID: actor})
}

func TestBookWholeHourMarksGridBooked(t *testing.T) {
	svc, rec, l := newService(t)
	ctx := context.Background()

	slots, err := svc.GenerateSlots(ctx, 1, "2026-11-02")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, int64(2000), slots[0].PriceCents)

	res, err := book(svc, 1, playerID, [2]time.Time{slots[0].Start, slots[0].End}, [2]time.Time{slots[1].Start, slots[1].End})
	require.NoError(t, err)
	require.Len(t, res.ReservationIDs, 1)
	assert.False(t, res.Partial())

	r, err := l.Get(ctx, res.ReservationIDs[0])
	require.NoError(t, err)
	assert.Equal(t, int64(4000), r.TotalPriceCents)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.True(t, r.RequestedBy(playerID))
	assert.Equal(t, []string{queue.EventCreated}, rec.types())

	slots, err = svc.GenerateSlots(ctx, 1, "2026-11-02")
	require.NoError(t, err)
	for _, s := range slots {
		assert.Equal(t, model.SlotBooked, s.Status, "round trip: %s", s.Start)
	}
}

func TestConcurrentBookingsOneWins(t *testing.T) {
	svc, _, _ := newService(t)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, actor := range []uint64{playerID, rivalID} {
		wg.Add(1)
		go func(i int, actor uint64) {
			defer wg.Done()
			_, errs[i] = book(svc, 2, actor, [2]time.Time{at(9, 0), at(10, 0)})
		}(i, actor)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperror.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestOwnerBlockConfirmsImmediately(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	id, err := svc.BlockSlot(ctx, 3, at(14, 0), at(15, 0), "maintenance", ownerID)
	require.NoError(t, err, "blocks need no price configuration")

	_, err = svc.BlockSlot(ctx, 3, at(16, 0), at(17, 0), "maintenance", playerID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	unitSlots, err := svc.GenerateSlots(ctx, 2, "2026-11-02")
	require.NoError(t, err)
	assert.NotEmpty(t, unitSlots)

	_, err = svc.BlockSlot(ctx, 2, at(14, 0), at(15, 0), "maintenance", ownerID)
	require.NoError(t, err)
	slots, err := svc.GenerateSlots(ctx, 2, "2026-11-02")
	require.NoError(t, err)
	for _, s := range slots {
		if !s.Start.Before(at(14, 0)) && s.Start.Before(at(15, 0)) {
			require.Equal(t, model.SlotBooked, s.Status)
			assert.Equal(t, model.SourceOwnerBlock, s.Booking.Source)
		}
	}

	_, err = book(svc, 2, playerID, [2]time.Time{at(14, 30), at(15, 30)})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	r, err := svc.GetReservation(ctx, id, ownerID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, r.Status)
	assert.Equal(t, "maintenance", r.Reason)
	assert.Zero(t, r.TotalPriceCents)
}

func TestShortBatchesAreNamed(t *testing.T) {
	svc, rec, _ := newService(t)

	_, err := book(svc, 2, playerID, [2]time.Time{at(17, 0), at(17, 30)}, [2]time.Time{at(20, 0), at(20, 30)})
	var ve *apperror.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Batches, 2)
	assert.Contains(t, err.Error(), "17:00-17:30")
	assert.Contains(t, err.Error(), "20:00-20:30")
	assert.Empty(t, rec.types(), "nothing reaches the ledger")
}

func TestConfirmMovesBetweenLists(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()

	res, err := book(svc, 2, playerID, [2]time.Time{at(9, 0), at(10, 0)})
	require.NoError(t, err)
	id := res.ReservationIDs[0]

	venue := uint64(1)
	pending, confirmed := model.StatusPending, model.StatusConfirmed

	list, err := svc.ListReservations(ctx, model.ReservationFilter{VenueID: &venue, Status: &pending}, ownerID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, svc.ConfirmReservation(ctx, id, playerID), apperror.ErrForbidden)
	require.NoError(t, svc.ConfirmReservation(ctx, id, ownerID))
	assert.ErrorIs(t, svc.ConfirmReservation(ctx, id, ownerID), apperror.ErrInvalidState)

	list, err = svc.ListReservations(ctx, model.ReservationFilter{VenueID: &venue, Status: &pending}, ownerID)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = svc.ListReservations(ctx, model.ReservationFilter{VenueID: &venue, Status: &confirmed}, ownerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	assert.Equal(t, []string{queue.EventCreated, queue.EventConfirmed}, rec.types())
}

func TestPartialSuccessIsExplicit(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.BlockSlot(ctx, 2, at(20, 0), at(21, 0), "league", ownerID)
	require.NoError(t, err)

	res, err := book(svc, 2, playerID, [2]time.Time{at(17, 0), at(18, 0)}, [2]time.Time{at(20, 0), at(21, 0)})
	require.NoError(t, err)
	assert.Len(t, res.ReservationIDs, 1)
	require.True(t, res.Partial())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, at(20, 0), res.Failures[0].Start)
	assert.ErrorIs(t, res.Failures[0].Err, apperror.ErrConflict)

	_, err = book(svc, 2, playerID, [2]time.Time{at(20, 0), at(21, 0)}, [2]time.Time{at(17, 0), at(18, 0)})
	assert.ErrorIs(t, err, apperror.ErrConflict, "fully booked returns the error")
}

func TestCreateReservationGuards(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := book(svc, 3, playerID, [2]time.Time{at(9, 0), at(10, 0)})
	assert.ErrorIs(t, err, apperror.ErrValidation, "padel has no price")

	_, err = book(svc, 99, playerID, [2]time.Time{at(9, 0), at(10, 0)})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.CreateReservation(ctx, CreateRequest{UnitID: 2, Source: model.SourceWalkIn, ActorID: playerID,
		Selections: []model.Interval{{Start: at(9, 0), End: at(10, 0)}}})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	res, err := svc.CreateReservation(ctx, CreateRequest{UnitID: 2, Source: model.SourceWalkIn, ActorID: ownerID, GuestName: "Ravi",
		Selections: []model.Interval{{Start: at(9, 0), End: at(10, 30)}}})
	require.NoError(t, err)
	r, err := svc.GetReservation(ctx, res.ReservationIDs[0], ownerID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)
	assert.Equal(t, int64(9000), r.TotalPriceCents, "sport default 6000/h for 90 minutes")
	assert.Nil(t, r.RequesterID)

	_, err = svc.CreateReservation(ctx, CreateRequest{UnitID: 2, Source: "phone", ActorID: ownerID})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCancelRejectAndUpdate(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()

	a, _ := book(svc, 2, playerID, [2]time.Time{at(9, 0), at(10, 0)})
	b, _ := book(svc, 2, playerID, [2]time.Time{at(11, 0), at(12, 0)})

	assert.ErrorIs(t, svc.CancelReservation(ctx, a.ReservationIDs[0], rivalID), apperror.ErrForbidden)
	require.NoError(t, svc.CancelReservation(ctx, a.ReservationIDs[0], playerID))
	require.NoError(t, svc.RejectReservation(ctx, b.ReservationIDs[0], ownerID))

	_, err := svc.UpdateManualReservation(ctx, b.ReservationIDs[0], model.ManualUpdate{Reason: new(string)}, ownerID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	id, err := svc.BlockSlot(ctx, 2, at(13, 0), at(14, 0), "cleaning", ownerID)
	require.NoError(t, err)
	reason := "resurfacing"
	r, err := svc.UpdateManualReservation(ctx, id, model.ManualUpdate{Reason: &reason}, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "resurfacing", r.Reason)

	n, err := svc.PendingCount(ctx, 1, ownerID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []string{
		queue.EventCreated, queue.EventCreated, queue.EventCancelled, queue.EventRejected,
		queue.EventCreated, queue.EventUpdated,
	}, rec.types())
}

func TestListReservationsAuthorization(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := book(svc, 2, playerID, [2]time.Time{at(9, 0), at(10, 0)})
	require.NoError(t, err)

	me := playerID
	list, err := svc.ListReservations(ctx, model.ReservationFilter{RequesterID: &me}, playerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListReservations(ctx, model.ReservationFilter{RequesterID: &me}, rivalID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	venue := uint64(1)
	_, err = svc.ListReservations(ctx, model.ReservationFilter{VenueID: &venue}, playerID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	unit := uint64(2)
	list, err = svc.ListReservations(ctx, model.ReservationFilter{UnitID: &unit}, ownerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListReservations(ctx, model.ReservationFilter{}, ownerID)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

type countingCompleter struct{ calls int }

func (c *countingCompleter) CompleteElapsed(context.Context) (int64, error) {
	c.calls++
	return 2, nil
}

func TestCompletionJob(t *testing.T) {
	_, err := NewCompletionJob(&countingCompleter{}, "not a schedule")
	assert.Error(t, err)

	c := &countingCompleter{}
	j, err := NewCompletionJob(c, "@every 1m")
	require.NoError(t, err)
	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, c.calls)

	j.Start()
	j.Stop()
}
