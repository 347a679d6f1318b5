package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// CatalogRepo reads venues, units and sport prices.  The catalog is
// maintained outside this service, so it is read-only here.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the provided DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// Venue returns venue id or apperror.ErrNotFound.
func (r *CatalogRepo) Venue(ctx context.Context, id uint64) (*model.Venue, error) {
	const q = "SELECT id, owner_id, name, created_at, updated_at FROM venues WHERE id = ?"
	var v model.Venue
	err := r.db.QueryRowContext(ctx, q, id).Scan(&v.ID, &v.OwnerID, &v.Name, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("venue", id)
	}
	if err != nil {
		return nil, fmt.Errorf("venues: get: %w", err)
	}
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return &v, nil
}

// Unit returns unit id or apperror.ErrNotFound.
func (r *CatalogRepo) Unit(ctx context.Context, id uint64) (*model.Unit, error) {
	const q = `SELECT id, venue_id, name, sport_type, capacity, hourly_price_cents, opening_hour, closing_hour
		FROM units WHERE id = ?`
	var (
		u     model.Unit
		price null.Int
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.VenueID, &u.Name, &u.SportType, &u.Capacity,
		&price, &u.OpeningHour, &u.ClosingHour)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("unit", id)
	}
	if err != nil {
		return nil, fmt.Errorf("units: get: %w", err)
	}
	u.HourlyPriceCents = price.Ptr()
	return &u, nil
}

// Sport returns the price row of code or apperror.ErrNotFound.
func (r *CatalogRepo) Sport(ctx context.Context, code string) (*model.Sport, error) {
	const q = "SELECT code, name, default_hourly_price_cents FROM sports WHERE code = ?"
	var (
		s     model.Sport
		price null.Int
	)
	err := r.db.QueryRowContext(ctx, q, code).Scan(&s.Code, &s.Name, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("sport", code)
	}
	if err != nil {
		return nil, fmt.Errorf("sports: get: %w", err)
	}
	s.DefaultHourlyPriceCents = price.Ptr()
	return &s, nil
}

// Seed is the JSON catalog loaded by MemoryCatalog.
type Seed struct {
	Venues []model.Venue `json:"venues"`
	Units  []model.Unit  `json:"units"`
	Sports []model.Sport `json:"sports"`
}

// validate checks the references and hours of a seed.
func (s Seed) validate() error {
	venues := make(map[uint64]bool, len(s.Venues))
	for _, v := range s.Venues {
		if v.ID == 0 {
			return errors.New("seed: venue without id")
		}
		venues[v.ID] = true
	}
	for _, u := range s.Units {
		if u.ID == 0 || !venues[u.VenueID] {
			return fmt.Errorf("seed: unit %d references unknown venue %d", u.ID, u.VenueID)
		}
		if u.OpeningHour < 0 || u.ClosingHour > 24 || u.OpeningHour > u.ClosingHour {
			return fmt.Errorf("seed: unit %d has invalid hours %d-%d", u.ID, u.OpeningHour, u.ClosingHour)
		}
	}
	return nil
}

func stamp(v *model.Venue) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
}
