package ledger

import (
	"context"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// Directory resolves the catalog records authorization depends on.
type Directory interface {
	Unit(ctx context.Context, id uint64) (*model.Unit, error)
	Venue(ctx context.Context, id uint64) (*model.Venue, error)
}

// Approval authorizes ledger transitions against an explicit actor.
// Only the venue owner confirms, rejects, edits or blocks; the requester
// or the owner may cancel.
type Approval struct {
	ledger *Ledger
	dir    Directory
}

func NewApproval(l *Ledger, dir Directory) *Approval {
	return &Approval{ledger: l, dir: dir}
}

// AuthorizeVenue returns the venue when actorID owns it.
func (a *Approval) AuthorizeVenue(ctx context.Context, venueID, actorID uint64) (*model.Venue, error) {
	v, err := a.dir.Venue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if v.OwnerID != actorID {
		return nil, apperror.Forbidden("not the owner of this venue")
	}
	return v, nil
}

// AuthorizeUnit returns the unit when actorID owns its venue.
func (a *Approval) AuthorizeUnit(ctx context.Context, unitID, actorID uint64) (*model.Unit, error) {
	u, err := a.dir.Unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if _, err := a.AuthorizeVenue(ctx, u.VenueID, actorID); err != nil {
		return nil, err
	}
	return u, nil
}

// Get returns a reservation visible to actorID: its requester or the
// owner of its venue.
func (a *Approval) Get(ctx context.Context, id, actorID uint64) (*model.Reservation, error) {
	r, err := a.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.RequestedBy(actorID) {
		return r, nil
	}
	if _, err := a.AuthorizeVenue(ctx, r.VenueID, actorID); err != nil {
		return nil, err
	}
	return r, nil
}

func (a *Approval) owned(ctx context.Context, id, actorID uint64) (*model.Reservation, error) {
	r, err := a.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := a.AuthorizeVenue(ctx, r.VenueID, actorID); err != nil {
		return nil, err
	}
	return r, nil
}

// Confirm confirms a pending reservation of a venue owned by actorID.
func (a *Approval) Confirm(ctx context.Context, id, actorID uint64) (*model.Reservation, error) {
	r, err := a.owned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if err := a.ledger.Confirm(ctx, id); err != nil {
		return nil, err
	}
	r.Status = model.StatusConfirmed
	return r, nil
}

// Reject rejects a pending reservation of a venue owned by actorID.
func (a *Approval) Reject(ctx context.Context, id, actorID uint64) (*model.Reservation, error) {
	r, err := a.owned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if err := a.ledger.Reject(ctx, id); err != nil {
		return nil, err
	}
	r.Status = model.StatusRejected
	return r, nil
}

// Cancel cancels a reservation on behalf of its requester or the venue
// owner.
func (a *Approval) Cancel(ctx context.Context, id, actorID uint64) (*model.Reservation, error) {
	r, err := a.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if err := a.ledger.Cancel(ctx, id); err != nil {
		return nil, err
	}
	r.Status = model.StatusCancelled
	return r, nil
}

// Update edits a walk-in or owner-block record of a venue owned by
// actorID and returns the edited record.
func (a *Approval) Update(ctx context.Context, id uint64, u model.ManualUpdate, actorID uint64) (*model.Reservation, error) {
	if _, err := a.owned(ctx, id, actorID); err != nil {
		return nil, err
	}
	if err := a.ledger.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return a.ledger.Get(ctx, id)
}

// PendingCountForOwner returns the pending count of a venue owned by
// actorID.
func (a *Approval) PendingCountForOwner(ctx context.Context, venueID, actorID uint64) (int, error) {
	if _, err := a.AuthorizeVenue(ctx, venueID, actorID); err != nil {
		return 0, err
	}
	return a.ledger.PendingCount(ctx, venueID)
}
