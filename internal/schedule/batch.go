package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// Batch is a maximal run of contiguous slots.  Each batch becomes one
// reservation.
type Batch struct {
	Slots []model.Slot
}

// Start returns the start of the first slot.
func (b Batch) Start() time.Time { return b.Slots[0].Start }

// End returns the end of the last slot.
func (b Batch) End() time.Time { return b.Slots[len(b.Slots)-1].End }

// Len returns the number of slots in the batch.
func (b Batch) Len() int { return len(b.Slots) }

// Duration returns End - Start.
func (b Batch) Duration() time.Duration { return b.End().Sub(b.Start()) }

// Interval returns the reserved range of the batch.
func (b Batch) Interval() model.Interval { return model.Interval{Start: b.Start(), End: b.End()} }

// Group sorts the selected slots by start time, drops duplicates and
// splits them into contiguous batches.  A boundary falls between two
// slots whenever the first one's end differs from the next one's start.
func Group(slots []model.Slot) []Batch {
	if len(slots) == 0 {
		return nil
	}
	sorted := make([]model.Slot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var (
		batches []Batch
		current = Batch{Slots: []model.Slot{sorted[0]}}
	)
	for _, s := range sorted[1:] {
		last := current.Slots[len(current.Slots)-1]
		if s.Start.Equal(last.Start) {
			continue
		}
		if !s.Start.Equal(last.End) {
			batches = append(batches, current)
			current = Batch{}
		}
		current.Slots = append(current.Slots, s)
	}
	return append(batches, current)
}

// Validate checks that every batch holds at least minSlots slots.  The
// returned ValidationError names all offending batches, not just the
// first one.
func Validate(batches []Batch, minSlots int) error {
	if len(batches) == 0 {
		return apperror.Validation("no slots selected")
	}
	var issues []apperror.BatchIssue
	for _, b := range batches {
		if b.Len() < minSlots {
			issues = append(issues, apperror.BatchIssue{
				Start:  b.Start(),
				End:    b.End(),
				Slots:  b.Len(),
				Reason: fmt.Sprintf("%d slot(s), minimum is %d", b.Len(), minSlots),
			})
		}
	}
	if len(issues) > 0 {
		return &apperror.ValidationError{Message: "session shorter than minimum length", Batches: issues}
	}
	return nil
}
