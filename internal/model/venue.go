package model

import "time"

// Venue represents a sports venue owned by a user.  A venue contains
// one or more bookable units.  The owner of the venue is the only user
// allowed to approve, reject, block or edit reservations on its units.
//
// Fields:
//
//   - ID: primary key identifier.
//   - OwnerID: user ID of the venue owner.
//   - Name: display name of the venue.
//   - CreatedAt: timestamp when the venue was created.
//   - UpdatedAt: timestamp of last update.
type Venue struct {
	ID        uint64    `json:"id"`         // venues.id
	OwnerID   uint64    `json:"owner_id"`   // venues.owner_id
	Name      string    `json:"name"`       // venues.name
	CreatedAt time.Time `json:"created_at"` // venues.created_at
	UpdatedAt time.Time `json:"updated_at"` // venues.updated_at
}
