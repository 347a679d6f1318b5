// Package queue carries reservation events over RabbitMQ: the payload
// type, a publisher used by the booking service after every committed
// transition, and a consumer that appends the stream to an audit log.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/turf-reservation/internal/model"
)

// Event types double as routing keys on the reservation exchange.
const (
	EventCreated   = "reservation.created"
	EventConfirmed = "reservation.confirmed"
	EventRejected  = "reservation.rejected"
	EventCancelled = "reservation.cancelled"
	EventUpdated   = "reservation.updated"
)

// ReservationEvent is published after a reservation changes.  It holds
// enough of the record for consumers to log or notify without reading
// the database.
type ReservationEvent struct {
	EventID         string    `json:"event_id"`
	Type            string    `json:"type"`
	ReservationID   uint64    `json:"reservation_id"`
	UnitID          uint64    `json:"unit_id"`
	VenueID         uint64    `json:"venue_id"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	RequesterID     *uint64   `json:"requester_id,omitempty"`
	ActorID         uint64    `json:"actor_id"`
	TotalPriceCents int64     `json:"total_price_cents"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewReservationEvent builds an event of type typ for r.
func NewReservationEvent(typ string, r model.Reservation, actorID uint64, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:         uuid.NewString(),
		Type:            typ,
		ReservationID:   r.ID,
		UnitID:          r.UnitID,
		VenueID:         r.VenueID,
		Status:          string(r.Status),
		Source:          string(r.Source),
		StartTime:       r.StartTime.UTC(),
		EndTime:         r.EndTime.UTC(),
		RequesterID:     r.RequesterID,
		ActorID:         actorID,
		TotalPriceCents: r.TotalPriceCents,
		OccurredAt:      at.UTC(),
	}
}
