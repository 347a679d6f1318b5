package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// ReservationRepo stores reservations in MySQL.  It implements
// ledger.Store and availability.Source.  All timestamps are UTC.
type ReservationRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewReservationRepo returns a ReservationRepo bound to db.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, now: time.Now}
}

// ReservationRecord mirrors the reservations table.  Nullable columns use
// null types; business logic works with model.Reservation.
type ReservationRecord struct {
	ID              uint64
	UnitID          uint64
	VenueID         uint64
	StartTime       time.Time
	EndTime         time.Time
	Status          string
	Source          string
	RequesterID     null.Int
	GuestName       null.String
	GuestPhone      null.String
	Reason          null.String
	TotalPriceCents int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (rec ReservationRecord) toModel() (model.Reservation, error) {
	st, err := model.ParseStatus(rec.Status)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reservation %d: %w", rec.ID, err)
	}
	src, err := model.ParseSource(rec.Source)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reservation %d: %w", rec.ID, err)
	}
	r := model.Reservation{
		ID:              rec.ID,
		UnitID:          rec.UnitID,
		VenueID:         rec.VenueID,
		StartTime:       rec.StartTime.UTC(),
		EndTime:         rec.EndTime.UTC(),
		Status:          st,
		Source:          src,
		GuestName:       rec.GuestName.String,
		GuestPhone:      rec.GuestPhone.String,
		Reason:          rec.Reason.String,
		TotalPriceCents: rec.TotalPriceCents,
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}
	if rec.RequesterID.Valid {
		id := uint64(rec.RequesterID.Int64)
		r.RequesterID = &id
	}
	return r, nil
}

func recordFrom(r *model.Reservation) ReservationRecord {
	rec := ReservationRecord{
		ID:              r.ID,
		UnitID:          r.UnitID,
		VenueID:         r.VenueID,
		StartTime:       r.StartTime.UTC(),
		EndTime:         r.EndTime.UTC(),
		Status:          string(r.Status),
		Source:          string(r.Source),
		GuestName:       null.NewString(r.GuestName, r.GuestName != ""),
		GuestPhone:      null.NewString(r.GuestPhone, r.GuestPhone != ""),
		Reason:          null.NewString(r.Reason, r.Reason != ""),
		TotalPriceCents: r.TotalPriceCents,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.RequesterID != nil {
		rec.RequesterID = null.IntFrom(int64(*r.RequesterID))
	}
	return rec
}

const reservationColumns = `id, unit_id, venue_id, start_time, end_time, status, source, requester_id,
	guest_name, guest_phone, reason, total_price_cents, created_at, updated_at`

const activeStatusList = `('pending','confirmed','blocked')`

type scanner interface {
	Scan(dest ...any) error
}

func scanReservation(s scanner) (model.Reservation, error) {
	var rec ReservationRecord
	if err := s.Scan(&rec.ID, &rec.UnitID, &rec.VenueID, &rec.StartTime, &rec.EndTime, &rec.Status, &rec.Source,
		&rec.RequesterID, &rec.GuestName, &rec.GuestPhone, &rec.Reason, &rec.TotalPriceCents,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return model.Reservation{}, err
	}
	return rec.toModel()
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ActiveOverlapping returns the pending, confirmed and blocked
// reservations of unitID intersecting [start, end).  It is served by the
// (unit_id, start_time, end_time) index.
func (r *ReservationRepo) ActiveOverlapping(ctx context.Context, unitID uint64, start, end time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE unit_id = ? AND status IN ` + activeStatusList + ` AND start_time < ? AND end_time > ?
		ORDER BY start_time`
	list, err := r.query(ctx, q, unitID, end.UTC(), start.UTC())
	if err != nil {
		return nil, fmt.Errorf("reservations: active overlapping: %w", err)
	}
	return list, nil
}

// CreateIfFree inserts res unless an active reservation overlaps it.  The
// unit row is locked first so every create of one unit is serialised by
// InnoDB, then the overlap check and the insert run in the same
// transaction.
func (r *ReservationRepo) CreateIfFree(ctx context.Context, res *model.Reservation) (uint64, error) {
	conflict := &apperror.ConflictError{UnitID: res.UnitID, Start: res.StartTime, End: res.EndTime}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("reservations: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM units WHERE id = ? FOR UPDATE`, res.UnitID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.NotFound("unit", res.UnitID)
	}
	if err != nil {
		return 0, conflictOnContention(fmt.Errorf("reservations: lock unit: %w", err), conflict)
	}

	if res.Status.Active() {
		var existing uint64
		err = tx.QueryRowContext(ctx, `SELECT id FROM reservations
			WHERE unit_id = ? AND status IN `+activeStatusList+` AND start_time < ? AND end_time > ?
			LIMIT 1 FOR UPDATE`, res.UnitID, res.EndTime.UTC(), res.StartTime.UTC()).Scan(&existing)
		switch {
		case err == nil:
			conflict.ExistingID = existing
			return 0, conflict
		case !errors.Is(err, sql.ErrNoRows):
			return 0, conflictOnContention(fmt.Errorf("reservations: overlap check: %w", err), conflict)
		}
	}

	now := r.now().UTC()
	res.CreatedAt, res.UpdatedAt = now, now
	rec := recordFrom(res)
	result, err := tx.ExecContext(ctx, `INSERT INTO reservations
		(unit_id, venue_id, start_time, end_time, status, source, requester_id, guest_name, guest_phone, reason, total_price_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UnitID, rec.VenueID, rec.StartTime, rec.EndTime, rec.Status, rec.Source, rec.RequesterID,
		rec.GuestName, rec.GuestPhone, rec.Reason, rec.TotalPriceCents, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return 0, conflictOnContention(fmt.Errorf("reservations: insert: %w", err), conflict)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reservations: insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, conflictOnContention(fmt.Errorf("reservations: commit: %w", err), conflict)
	}
	committed = true
	res.ID = uint64(id)
	return res.ID, nil
}

// Get returns reservation id or apperror.ErrNotFound.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("reservation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reservations: get: %w", err)
	}
	return &res, nil
}

// SetStatus moves reservation id from one status to another in a single
// guarded UPDATE.
func (r *ReservationRepo) SetStatus(ctx context.Context, id uint64, from, to model.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), r.now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("reservations: set status: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("reservations: set status: %w", err)
	} else if n == 1 {
		return nil
	}
	return r.explainMiss(ctx, id, "")
}

// explainMiss reports why a guarded update touched no row.
func (r *ReservationRepo) explainMiss(ctx context.Context, id uint64, op string) error {
	var current string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("reservation", id)
	}
	if err != nil {
		return fmt.Errorf("reservations: read status: %w", err)
	}
	return &apperror.StateError{ReservationID: id, Op: op, Status: current}
}

// UpdateManual edits the guest, price and reason columns of a walk-in or
// owner-block reservation.  The DSN sets clientFoundRows so an update
// that leaves every value unchanged still counts as a match.
func (r *ReservationRepo) UpdateManual(ctx context.Context, id uint64, u model.ManualUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.GuestName != nil {
		sets = append(sets, "guest_name = ?")
		args = append(args, null.NewString(*u.GuestName, *u.GuestName != ""))
	}
	if u.GuestPhone != nil {
		sets = append(sets, "guest_phone = ?")
		args = append(args, null.NewString(*u.GuestPhone, *u.GuestPhone != ""))
	}
	if u.Reason != nil {
		sets = append(sets, "reason = ?")
		args = append(args, null.NewString(*u.Reason, *u.Reason != ""))
	}
	if u.TotalPriceCents != nil {
		sets = append(sets, "total_price_cents = ?")
		args = append(args, *u.TotalPriceCents)
	}
	if len(sets) == 0 {
		return apperror.Validation("nothing to update")
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now().UTC(), id)

	q := `UPDATE reservations SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND source IN ('walk-in','owner-block')`
	result, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("reservations: update: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("reservations: update: %w", err)
	} else if n == 1 {
		return nil
	}
	return r.explainMiss(ctx, id, "update")
}

// List returns the reservations matching f ordered by start time.  The
// completed status is matched the way model.Reservation.EffectiveStatus
// derives it.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.VenueID != nil {
		where = append(where, "venue_id = ?")
		args = append(args, *f.VenueID)
	}
	if f.UnitID != nil {
		where = append(where, "unit_id = ?")
		args = append(args, *f.UnitID)
	}
	if f.RequesterID != nil {
		where = append(where, "requester_id = ?")
		args = append(args, *f.RequesterID)
	}
	if f.Source != nil {
		where = append(where, "source = ?")
		args = append(args, string(*f.Source))
	}
	if f.From != nil {
		where = append(where, "end_time > ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "start_time < ?")
		args = append(args, f.To.UTC())
	}
	if f.Status != nil {
		asOf := f.AsOf.UTC()
		switch *f.Status {
		case model.StatusCompleted:
			where = append(where, "(status = 'completed' OR (status = 'confirmed' AND end_time <= ?))")
			args = append(args, asOf)
		case model.StatusConfirmed:
			where = append(where, "status = 'confirmed' AND end_time > ?")
			args = append(args, asOf)
		default:
			where = append(where, "status = ?")
			args = append(args, string(*f.Status))
		}
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY start_time, id`
	list, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("reservations: list: %w", err)
	}
	return list, nil
}

// CountByVenueStatus counts through the (venue_id, status) index.
func (r *ReservationRepo) CountByVenueStatus(ctx context.Context, venueID uint64, status model.Status) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE venue_id = ? AND status = ?`, venueID, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reservations: count: %w", err)
	}
	return n, nil
}

// CompleteEnded marks confirmed reservations ending at or before now as
// completed.
func (r *ReservationRepo) CompleteEnded(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = 'completed', updated_at = ? WHERE status = 'confirmed' AND end_time <= ?`,
		r.now().UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("reservations: complete ended: %w", err)
	}
	return result.RowsAffected()
}
