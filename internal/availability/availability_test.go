package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-reservation/internal/model"
)

var base = time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)

func hm(h, m int) time.Time {
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	return base.Add(d)
}

func res(id, unit uint64, from, to time.Time, st model.Status) model.Reservation {
	return model.Reservation{ID: id, UnitID: unit, StartTime: from, EndTime: to, Status: st}
}

func TestIntervalsOverlapQueries(t *testing.T) {
	iv := NewIntervals()
	iv.Insert(res(1, 7, hm(10, 0), hm(11, 0), model.StatusConfirmed))
	iv.Insert(res(2, 7, hm(8, 0), hm(9, 0), model.StatusPending))
	iv.Insert(res(3, 7, hm(14, 0), hm(15, 0), model.StatusBlocked))
	iv.Insert(res(4, 8, hm(10, 0), hm(11, 0), model.StatusConfirmed))
	iv.Insert(res(5, 7, hm(12, 0), hm(13, 0), model.StatusCancelled))

	assert.Equal(t, 3, iv.Len(7))
	assert.Empty(t, iv.Overlapping(7, hm(9, 0), hm(10, 0)), "touching intervals do not overlap")
	assert.Empty(t, iv.Overlapping(7, hm(12, 0), hm(13, 0)), "cancelled records are not indexed")

	got := iv.Overlapping(7, hm(8, 30), hm(14, 30))
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{2, 1, 3}, []uint64{got[0].ID, got[1].ID, got[2].ID})

	got = iv.Overlapping(7, hm(10, 30), hm(10, 45))
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ID)
}

func TestIntervalsReplaceAndRemove(t *testing.T) {
	iv := NewIntervals()
	iv.Insert(res(1, 7, hm(10, 0), hm(11, 0), model.StatusPending))
	iv.Insert(res(1, 7, hm(10, 0), hm(11, 0), model.StatusConfirmed))
	require.Equal(t, 1, iv.Len(7))
	assert.Equal(t, model.StatusConfirmed, iv.Overlapping(7, hm(10, 0), hm(11, 0))[0].Status)

	iv.Insert(res(1, 7, hm(10, 0), hm(11, 0), model.StatusRejected))
	assert.Equal(t, 0, iv.Len(7))

	iv.Insert(res(2, 7, hm(10, 0), hm(11, 0), model.StatusBlocked))
	iv.Remove(7, 2)
	assert.Empty(t, iv.Overlapping(7, hm(0, 0), hm(23, 59)))
}

type failingSource struct{}

func (failingSource) ActiveOverlapping(context.Context, uint64, time.Time, time.Time) ([]model.Reservation, error) {
	return nil, errors.New("db down")
}

func TestIndex(t *testing.T) {
	ctx := context.Background()
	iv := NewIntervals()
	iv.Insert(res(3, 1, hm(14, 0), hm(15, 0), model.StatusBlocked))
	x := New(iv)

	ok, err := x.Overlaps(ctx, 1, hm(14, 30), hm(15, 30))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = x.Overlaps(ctx, 1, hm(15, 0), hm(16, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	r, err := x.ActiveReservation(ctx, 1, hm(14, 0), hm(14, 30))
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, uint64(3), r.ID)

	r, err = x.ActiveReservation(ctx, 1, hm(14, 0), hm(14, 0))
	require.NoError(t, err)
	assert.Nil(t, r)

	day, err := x.ActiveBetween(ctx, 1, hm(0, 0), hm(24, 0))
	require.NoError(t, err)
	assert.Len(t, day, 1)

	_, err = New(failingSource{}).Overlaps(ctx, 1, hm(1, 0), hm(2, 0))
	assert.EqualError(t, err, "db down")
}
