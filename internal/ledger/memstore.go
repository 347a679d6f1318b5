package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/availability"
	"github.com/iliyamo/turf-reservation/internal/model"
)

type venueStatus struct {
	venueID uint64
	status  model.Status
}

// MemoryStore is an in-process Store.  It backs APP_STORE=memory and the
// package tests.  Active reservations are mirrored in an interval index
// and per (venue, status) counters are maintained on every write.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Reservation
	active *availability.Intervals
	counts map[venueStatus]int
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[uint64]model.Reservation),
		active: availability.NewIntervals(),
		counts: make(map[venueStatus]int),
		now:    time.Now,
	}
}

func (s *MemoryStore) ActiveOverlapping(ctx context.Context, unitID uint64, start, end time.Time) ([]model.Reservation, error) {
	return s.active.ActiveOverlapping(ctx, unitID, start, end)
}

func (s *MemoryStore) CreateIfFree(_ context.Context, r *model.Reservation) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Status.Active() {
		if hit := s.active.Overlapping(r.UnitID, r.StartTime, r.EndTime); len(hit) > 0 {
			return 0, &apperror.ConflictError{UnitID: r.UnitID, Start: r.StartTime, End: r.EndTime, ExistingID: hit[0].ID}
		}
	}
	s.nextID++
	r.ID = s.nextID
	now := s.now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	s.put(*r)
	return r.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, apperror.NotFound("reservation", id)
	}
	return &r, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id uint64, from, to model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return apperror.NotFound("reservation", id)
	}
	if r.Status != from {
		return &apperror.StateError{ReservationID: id, Status: string(r.Status)}
	}
	r.Status = to
	r.UpdatedAt = s.now().UTC()
	s.put(r)
	return nil
}

func (s *MemoryStore) UpdateManual(_ context.Context, id uint64, u model.ManualUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return apperror.NotFound("reservation", id)
	}
	if !r.Source.Manual() {
		return &apperror.StateError{ReservationID: id, Op: "update", Status: string(r.Status)}
	}
	u.Apply(&r)
	r.UpdatedAt = s.now().UTC()
	s.put(r)
	return nil
}

func (s *MemoryStore) List(_ context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.rows {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CountByVenueStatus(_ context.Context, venueID uint64, status model.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[venueStatus{venueID, status}], nil
}

func (s *MemoryStore) CompleteEnded(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if r.Status == model.StatusConfirmed && !r.EndTime.After(now) {
			r.Status = model.StatusCompleted
			r.UpdatedAt = now.UTC()
			s.put(r)
			n++
		}
	}
	return n, nil
}

// put stores r and keeps the interval index and counters in step.
// Callers hold s.mu.
func (s *MemoryStore) put(r model.Reservation) {
	if old, ok := s.rows[r.ID]; ok {
		s.counts[venueStatus{old.VenueID, old.Status}]--
	}
	s.rows[r.ID] = r
	s.counts[venueStatus{r.VenueID, r.Status}]++
	s.active.Insert(r)
}
