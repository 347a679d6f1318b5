package model

import "time"

// SlotStatus tags a generated slot for display.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

// Slot is a fixed-size slice of a unit's operating hours.  Slots are
// derived on demand and never stored.  Booking is set when an active
// reservation covers the slot so owners can open the underlying record.
type Slot struct {
	UnitID     uint64       `json:"unit_id"`
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
	PriceCents int64        `json:"price_cents"`
	Status     SlotStatus   `json:"status"`
	Booking    *SlotBooking `json:"booking,omitempty"`
}

// SlotBooking summarises the active reservation covering a slot.
type SlotBooking struct {
	ReservationID uint64 `json:"reservation_id"`
	Status        Status `json:"status"`
	Source        Source `json:"source"`
}

// Interval is a caller-supplied [Start, End) time range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether End is strictly after Start.
func (i Interval) Valid() bool { return i.End.After(i.Start) }
