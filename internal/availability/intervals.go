package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/turf-reservation/internal/model"
)

// Intervals keeps the active reservations of every unit in memory,
// sorted by start time.  Active reservations of one unit never overlap,
// so the slice is sorted by end time as well and an overlap query is a
// binary search followed by a short forward scan.
//
// Intervals does not enforce the no-overlap rule itself; callers insert
// only after checking Overlapping under their own lock.
type Intervals struct {
	mu    sync.RWMutex
	units map[uint64][]model.Reservation
}

// NewIntervals returns an empty index.
func NewIntervals() *Intervals {
	return &Intervals{units: make(map[uint64][]model.Reservation)}
}

// Insert adds r when its status is active.  An existing entry with the
// same id is replaced.
func (iv *Intervals) Insert(r model.Reservation) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.removeLocked(r.UnitID, r.ID)
	if !r.Status.Active() {
		return
	}
	list := iv.units[r.UnitID]
	i := sort.Search(len(list), func(i int) bool { return list[i].StartTime.After(r.StartTime) })
	list = append(list, model.Reservation{})
	copy(list[i+1:], list[i:])
	list[i] = r
	iv.units[r.UnitID] = list
}

// Remove drops reservation id of unitID from the index.
func (iv *Intervals) Remove(unitID, id uint64) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.removeLocked(unitID, id)
}

func (iv *Intervals) removeLocked(unitID, id uint64) {
	list := iv.units[unitID]
	for i := range list {
		if list[i].ID == id {
			iv.units[unitID] = append(list[:i], list[i+1:]...)
			if len(iv.units[unitID]) == 0 {
				delete(iv.units, unitID)
			}
			return
		}
	}
}

// Overlapping returns the active reservations of unitID intersecting
// [start, end), ordered by start time.
func (iv *Intervals) Overlapping(unitID uint64, start, end time.Time) []model.Reservation {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	list := iv.units[unitID]
	i := sort.Search(len(list), func(i int) bool { return list[i].EndTime.After(start) })
	var out []model.Reservation
	for ; i < len(list) && list[i].StartTime.Before(end); i++ {
		out = append(out, list[i])
	}
	return out
}

// ActiveOverlapping implements Source.
func (iv *Intervals) ActiveOverlapping(_ context.Context, unitID uint64, start, end time.Time) ([]model.Reservation, error) {
	return iv.Overlapping(unitID, start, end), nil
}

// Len returns the number of active reservations held for unitID.
func (iv *Intervals) Len(unitID uint64) int {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	return len(iv.units[unitID])
}
