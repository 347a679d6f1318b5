package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusBlocked   Status = "blocked"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ActiveStatuses lists the statuses that occupy a unit's time line.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusBlocked}

// ParseStatus converts s into a Status.  Values outside the closed set
// are rejected.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusBlocked, StatusRejected, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

// Active reports whether a reservation in this status blocks the interval
// it covers.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusBlocked
}

// Source records who created a reservation and how.
type Source string

const (
	SourceOnline     Source = "online"
	SourceWalkIn     Source = "walk-in"
	SourceOwnerBlock Source = "owner-block"
)

// ParseSource converts s into a Source.
func ParseSource(s string) (Source, error) {
	switch src := Source(s); src {
	case SourceOnline, SourceWalkIn, SourceOwnerBlock:
		return src, nil
	}
	return "", fmt.Errorf("unknown reservation source %q", s)
}

// InitialStatus is the status a reservation of this source is created in.
// Online requests wait for owner approval; owner-entered records skip it.
func (s Source) InitialStatus() Status {
	switch s {
	case SourceWalkIn:
		return StatusConfirmed
	case SourceOwnerBlock:
		return StatusBlocked
	default:
		return StatusPending
	}
}

// Manual reports whether records of this source were entered by the owner
// and may be edited after creation.
func (s Source) Manual() bool {
	return s == SourceWalkIn || s == SourceOwnerBlock
}

// Reservation is the persisted booking of one contiguous run of slots on
// a unit.
//
// Fields:
//
//   - ID: primary key identifier.
//   - UnitID: unit being reserved.
//   - VenueID: venue of the unit (denormalised for owner queries).
//   - StartTime: inclusive start of the reserved interval (UTC).
//   - EndTime: exclusive end of the reserved interval (UTC).
//   - Status: lifecycle state.
//   - Source: online, walk-in or owner-block.
//   - RequesterID: player who requested the booking (nil for owner records).
//   - GuestName: customer name for walk-in records.
//   - GuestPhone: customer phone for walk-in records.
//   - Reason: free text for owner blocks (e.g. "maintenance").
//   - TotalPriceCents: price of the whole interval.
//   - CreatedAt: creation timestamp.
//   - UpdatedAt: last update timestamp.
type Reservation struct {
	ID              uint64    `json:"id"`                     // reservations.id
	UnitID          uint64    `json:"unit_id"`                // reservations.unit_id
	VenueID         uint64    `json:"venue_id"`               // reservations.venue_id
	StartTime       time.Time `json:"start_time"`             // reservations.start_time
	EndTime         time.Time `json:"end_time"`               // reservations.end_time
	Status          Status    `json:"status"`                 // reservations.status
	Source          Source    `json:"source"`                 // reservations.source
	RequesterID     *uint64   `json:"requester_id,omitempty"` // reservations.requester_id (nullable)
	GuestName       string    `json:"guest_name,omitempty"`   // reservations.guest_name (nullable)
	GuestPhone      string    `json:"guest_phone,omitempty"`  // reservations.guest_phone (nullable)
	Reason          string    `json:"reason,omitempty"`       // reservations.reason (nullable)
	TotalPriceCents int64     `json:"total_price_cents"`      // reservations.total_price_cents
	CreatedAt       time.Time `json:"created_at"`             // reservations.created_at
	UpdatedAt       time.Time `json:"updated_at"`             // reservations.updated_at
}

// Overlaps reports whether [StartTime, EndTime) intersects [start, end).
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// EffectiveStatus returns the status as seen at now.  A confirmed
// reservation whose end has passed reads as completed.
func (r Reservation) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusConfirmed && !r.EndTime.After(now) {
		return StatusCompleted
	}
	return r.Status
}

// RequestedBy reports whether userID is the player who requested r.
func (r Reservation) RequestedBy(userID uint64) bool {
	return r.RequesterID != nil && *r.RequesterID == userID
}

// ReservationFilter narrows reservation listings.  Nil fields are not
// applied.  AsOf is the instant used to derive the completed status; the
// ledger fills it in.
type ReservationFilter struct {
	VenueID     *uint64
	UnitID      *uint64
	RequesterID *uint64
	Status      *Status
	Source      *Source
	From        *time.Time // reservations ending after From
	To          *time.Time // reservations starting before To
	AsOf        time.Time
}

// Matches applies the filter to r in memory.  It mirrors the SQL built by
// the MySQL repository.
func (f ReservationFilter) Matches(r Reservation) bool {
	if f.VenueID != nil && r.VenueID != *f.VenueID {
		return false
	}
	if f.UnitID != nil && r.UnitID != *f.UnitID {
		return false
	}
	if f.RequesterID != nil && !r.RequestedBy(*f.RequesterID) {
		return false
	}
	if f.Source != nil && r.Source != *f.Source {
		return false
	}
	if f.From != nil && !r.EndTime.After(*f.From) {
		return false
	}
	if f.To != nil && !r.StartTime.Before(*f.To) {
		return false
	}
	if f.Status != nil && r.EffectiveStatus(f.AsOf) != *f.Status {
		return false
	}
	return true
}

// ManualUpdate carries the editable fields of a walk-in or owner-block
// record.  Time, unit and source are deliberately absent: moving a
// booking goes through cancel and recreate.
type ManualUpdate struct {
	GuestName       *string `json:"guest_name"`
	GuestPhone      *string `json:"guest_phone"`
	Reason          *string `json:"reason"`
	TotalPriceCents *int64  `json:"total_price_cents"`
}

// Empty reports whether no field is set.
func (u ManualUpdate) Empty() bool {
	return u.GuestName == nil && u.GuestPhone == nil && u.Reason == nil && u.TotalPriceCents == nil
}

// Apply copies the set fields onto r.
func (u ManualUpdate) Apply(r *Reservation) {
	if u.GuestName != nil {
		r.GuestName = *u.GuestName
	}
	if u.GuestPhone != nil {
		r.GuestPhone = *u.GuestPhone
	}
	if u.Reason != nil {
		r.Reason = *u.Reason
	}
	if u.TotalPriceCents != nil {
		r.TotalPriceCents = *u.TotalPriceCents
	}
}
