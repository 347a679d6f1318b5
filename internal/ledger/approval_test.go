package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
)

type fakeDirectory struct {
	units  map[uint64]model.Unit
	venues map[uint64]model.Venue
}

func (d fakeDirectory) Unit(_ context.Context, id uint64) (*model.Unit, error) {
	u, ok := d.units[id]
	if !ok {
		return nil, apperror.NotFound("unit", id)
	}
	return &u, nil
}

func (d fakeDirectory) Venue(_ context.Context, id uint64) (*model.Venue, error) {
	v, ok := d.venues[id]
	if !ok {
		return nil, apperror.NotFound("venue", id)
	}
	return &v, nil
}

const (
	owner    uint64 = 100
	stranger uint64 = 200
	player   uint64 = 5
)

func newApproval() (*Approval, *Ledger) {
	l, _ := newLedger()
	dir := fakeDirectory{
		units:  map[uint64]model.Unit{1: {ID: 1, VenueID: 1}},
		venues: map[uint64]model.Venue{1: {ID: 1, OwnerID: owner}},
	}
	return NewApproval(l, dir), l
}

func TestOnlyOwnerConfirmsOrRejects(t *testing.T) {
	ctx := context.Background()
	a, l := newApproval()
	id, err := l.Create(ctx, online(1, at(9, 0), at(10, 0), player))
	require.NoError(t, err)

	_, err = a.Confirm(ctx, id, player)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = a.Reject(ctx, id, stranger)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	r, err := a.Confirm(ctx, id, owner)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)

	_, err = a.Confirm(ctx, id, owner)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	_, err = a.Confirm(ctx, 404, owner)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCancelByRequesterOrOwner(t *testing.T) {
	ctx := context.Background()
	a, l := newApproval()
	first, _ := l.Create(ctx, online(1, at(9, 0), at(10, 0), player))
	second, _ := l.Create(ctx, online(1, at(10, 0), at(11, 0), player))

	_, err := a.Cancel(ctx, first, stranger)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	r, err := a.Cancel(ctx, first, player)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, r.Status)

	_, err = a.Cancel(ctx, second, owner)
	assert.NoError(t, err)
}

func TestGetVisibility(t *testing.T) {
	ctx := context.Background()
	a, l := newApproval()
	id, _ := l.Create(ctx, online(1, at(9, 0), at(10, 0), player))

	_, err := a.Get(ctx, id, player)
	assert.NoError(t, err)
	_, err = a.Get(ctx, id, owner)
	assert.NoError(t, err)
	_, err = a.Get(ctx, id, stranger)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestUpdateAndPendingCountNeedOwner(t *testing.T) {
	ctx := context.Background()
	a, l := newApproval()
	walkIn, _ := l.Create(ctx, Draft{UnitID: 1, VenueID: 1, Start: at(9, 0), End: at(10, 0), Source: model.SourceWalkIn})
	_, _ = l.Create(ctx, online(1, at(11, 0), at(12, 0), player))

	phone := "+91 98000 00000"
	_, err := a.Update(ctx, walkIn, model.ManualUpdate{GuestPhone: &phone}, stranger)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	r, err := a.Update(ctx, walkIn, model.ManualUpdate{GuestPhone: &phone}, owner)
	require.NoError(t, err)
	assert.Equal(t, phone, r.GuestPhone)

	_, err = a.PendingCountForOwner(ctx, 1, stranger)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	n, err := a.PendingCountForOwner(ctx, 1, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = a.AuthorizeUnit(ctx, 1, owner)
	assert.NoError(t, err)
	_, err = a.AuthorizeUnit(ctx, 9, owner)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
