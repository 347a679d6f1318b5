package model

// Unit is a single bookable physical resource (court, pitch, table)
// inside a venue.  Units are created and edited by the venue owner;
// the scheduling core only reads them.
//
// Fields:
//
//   - ID: primary key identifier.
//   - VenueID: venue the unit belongs to.
//   - Name: display name (e.g. "Court 2").
//   - SportType: code of the sport played on the unit; selects
//     the default price from the sports table.
//   - Capacity: number of players the unit accommodates.
//   - HourlyPriceCents: per-unit price override (nil falls back to the
//     sport default).
//   - OpeningHour: hour of day (0-23) the unit opens.
//   - ClosingHour: hour of day (1-24) the unit closes; 24 is midnight.
type Unit struct {
	ID               uint64 `json:"id"`                           // units.id
	VenueID          uint64 `json:"venue_id"`                     // units.venue_id
	Name             string `json:"name"`                         // units.name
	SportType        string `json:"sport_type"`                   // units.sport_type
	Capacity         int    `json:"capacity"`                     // units.capacity
	HourlyPriceCents *int64 `json:"hourly_price_cents,omitempty"` // units.hourly_price_cents (nullable)
	OpeningHour      int    `json:"opening_hour"`                 // units.opening_hour
	ClosingHour      int    `json:"closing_hour"`                 // units.closing_hour
}

// Sport is a row of the price table.  DefaultHourlyPriceCents applies
// to every unit of that sport that carries no override.
type Sport struct {
	Code                    string `json:"code"`                       // sports.code
	Name                    string `json:"name"`                       // sports.name
	DefaultHourlyPriceCents *int64 `json:"default_hourly_price_cents"` // sports.default_hourly_price_cents (nullable)
}
