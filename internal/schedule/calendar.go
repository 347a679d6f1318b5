// Package schedule holds the pure scheduling rules: the slot grid of a
// unit, grouping of selected slots into contiguous batches, and price
// resolution.  Nothing in this package performs I/O or mutates state.
package schedule

import (
	"sort"
	"time"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
)

const (
	// DefaultGranularity is the size of one slot.
	DefaultGranularity = 30 * time.Minute
	// MinSessionSlots is the shortest bookable run of slots.
	MinSessionSlots = 2

	dateLayout = "2006-01-02"
)

// Calendar generates the slot grid of a unit in the venue time zone.
type Calendar struct {
	Granularity time.Duration
	Location    *time.Location
}

// NewCalendar returns a Calendar using 30 minute slots in loc.  A nil
// location means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Granularity: DefaultGranularity, Location: loc}
}

func (c Calendar) step() time.Duration {
	if c.Granularity <= 0 {
		return DefaultGranularity
	}
	return c.Granularity
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Day parses a YYYY-MM-DD date into local midnight.
func (c Calendar) Day(date string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, c.loc())
	if err != nil {
		return time.Time{}, apperror.Validation("invalid date %q, expected YYYY-MM-DD", date)
	}
	return d, nil
}

// Window returns the opening and closing instants of unit on the local
// day containing day.  A closing hour of 24 is midnight of the next day.
func (c Calendar) Window(unit model.Unit, day time.Time) (time.Time, time.Time) {
	d := day.In(c.loc())
	open := time.Date(d.Year(), d.Month(), d.Day(), unit.OpeningHour, 0, 0, 0, c.loc())
	closing := time.Date(d.Year(), d.Month(), d.Day(), unit.ClosingHour, 0, 0, 0, c.loc())
	return open, closing
}

// Generate returns the ordered slots of unit on day, from the opening
// hour up to the last full slot that ends at or before the closing hour.
// Every slot is tagged available; see Tag.
func (c Calendar) Generate(unit model.Unit, day time.Time, slotPriceCents int64) []model.Slot {
	open, closing := c.Window(unit, day)
	step := c.step()
	var slots []model.Slot
	for start := open; !start.Add(step).After(closing); start = start.Add(step) {
		slots = append(slots, model.Slot{
			UnitID:     unit.ID,
			Start:      start,
			End:        start.Add(step),
			PriceCents: slotPriceCents,
			Status:     model.SlotAvailable,
		})
	}
	return slots
}

// Tag marks every slot covered by one of the active reservations as
// booked.  It is advisory: it neither creates nor locks anything.
func (c Calendar) Tag(slots []model.Slot, active []model.Reservation) []model.Slot {
	if len(active) == 0 {
		return slots
	}
	sorted := make([]model.Reservation, len(active))
	copy(sorted, active)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime.Before(sorted[j].StartTime) })

	out := make([]model.Slot, len(slots))
	copy(out, slots)
	j := 0
	for i := range out {
		for j < len(sorted) && !sorted[j].EndTime.After(out[i].Start) {
			j++
		}
		for k := j; k < len(sorted) && sorted[k].StartTime.Before(out[i].End); k++ {
			if !sorted[k].Status.Active() || !sorted[k].Overlaps(out[i].Start, out[i].End) {
				continue
			}
			out[i].Status = model.SlotBooked
			out[i].Booking = &model.SlotBooking{
				ReservationID: sorted[k].ID,
				Status:        sorted[k].Status,
				Source:        sorted[k].Source,
			}
			break
		}
	}
	return out
}

// SlotsFromSelections expands caller selections into grid slots of unit.
// Each selection must be non-empty, aligned to the grid and inside the
// operating hours of its day; every malformed selection is reported.
func (c Calendar) SlotsFromSelections(unit model.Unit, selections []model.Interval) ([]model.Slot, error) {
	if len(selections) == 0 {
		return nil, apperror.Validation("no time range selected")
	}
	step := c.step()
	var (
		slots  []model.Slot
		issues []apperror.BatchIssue
	)
	for _, sel := range selections {
		issue := apperror.BatchIssue{Start: sel.Start.In(c.loc()), End: sel.End.In(c.loc())}
		if !sel.Valid() {
			issue.Reason = "end must be after start"
			issues = append(issues, issue)
			continue
		}
		open, closing := c.Window(unit, sel.Start)
		switch {
		case sel.Start.Sub(open)%step != 0 || sel.End.Sub(sel.Start)%step != 0:
			issue.Reason = "not aligned to " + step.String() + " slots"
		case sel.Start.Before(open) || sel.End.After(closing):
			issue.Reason = "outside operating hours"
		}
		if issue.Reason != "" {
			issues = append(issues, issue)
			continue
		}
		for start := sel.Start; start.Before(sel.End); start = start.Add(step) {
			slots = append(slots, model.Slot{
				UnitID: unit.ID,
				Start:  start.In(c.loc()),
				End:    start.Add(step).In(c.loc()),
				Status: model.SlotAvailable,
			})
		}
	}
	if len(issues) > 0 {
		return nil, &apperror.ValidationError{Message: "malformed time range", Batches: issues}
	}
	return slots, nil
}
