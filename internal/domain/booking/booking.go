package booking

import (
	"context"
	"errors"
	"time"

	"rently/internal/domain/ad"
	"rently/internal/domain/shared/daterange"
	"rently/internal/domain/shared/events"
	"rently/internal/domain/shared/money"
)

var (
	ErrNotFound       = errors.New("booking: not found")
	ErrForbidden      = errors.New("booking: caller is not allowed to perform this action")
	ErrInvalidState   = errors.New("booking: invalid state transition")
	ErrDatesConflict  = errors.New("booking: requested dates overlap a confirmed booking")
	ErrContention     = errors.New("booking: could not serialize confirmation, try again")
	ErrAdInactive     = errors.New("booking: ad is inactive")
	ErrOwnAd          = errors.New("booking: cannot book your own ad")
	ErrCheckInPast    = errors.New("booking: start date must not be in the past")
	ErrAlreadyStarted = errors.New("booking: stay has already started")
)

type BookingID string

type State string

const (
	StatePending   State = "PENDING"
	StateConfirmed State = "CONFIRMED"
	StateRejected  State = "REJECTED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateCancelled
}

// Booking is a tenant's reservation request against an ad for a half-open
// date range. TotalCost is fixed at creation time and never recomputed.
type Booking struct {
	ID        BookingID
	AdID      ad.AdID
	TenantID  string
	Range     daterange.DateRange
	State     State
	TotalCost money.Money
	LastQuote *Quote
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Booking, error)
	ListByAd(ctx context.Context, adID ad.AdID) ([]*Booking, error)
	// ListPendingCreatedBefore feeds the hold-expiry sweeper.
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID       BookingID
	Ad       *ad.Ad
	TenantID string
	Range    daterange.DateRange
	Now      time.Time
}

// NewBooking validates the creation guards and produces a PENDING booking.
// Creation never checks for overlaps: competing holds are allowed to coexist
// and only promotion to CONFIRMED is exclusive.
func NewBooking(params CreateParams) (*Booking, error) {
	if params.Ad == nil {
		return nil, ad.ErrNotFound
	}
	if params.TenantID == "" {
		return nil, errors.New("booking: tenant id required")
	}
	if !params.Ad.IsActive {
		return nil, ErrAdInactive
	}
	if params.Ad.OwnerID == params.TenantID {
		return nil, ErrOwnAd
	}
	now := params.Now.UTC()
	if params.Range.From.Before(daterange.Day(now)) {
		return nil, ErrCheckInPast
	}
	total := params.Ad.PricePerDay.Multiply(int64(params.Range.Nights()))
	b := &Booking{
		ID:        params.ID,
		AdID:      params.Ad.ID,
		TenantID:  params.TenantID,
		Range:     params.Range,
		State:     StatePending,
		TotalCost: total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.Record(BookingRequested{BookingID: b.ID, AdID: b.AdID, TenantID: b.TenantID, Range: b.Range, TotalCost: total, At: now})
	return b, nil
}

// Confirm promotes a pending booking. The caller must have already verified
// that no confirmed booking overlaps the range; the aggregate only enforces
// the state transition.
func (b *Booking) Confirm(now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StateConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, AdID: b.AdID, Range: b.Range, TotalCost: b.TotalCost, At: b.UpdatedAt})
	return nil
}

// Reject declines a pending booking. Rejected is terminal.
func (b *Booking) Reject(reason string, now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StateRejected
	b.Reason = reason
	b.UpdatedAt = now.UTC()
	b.Record(BookingRejected{BookingID: b.ID, AdID: b.AdID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// Cancel ends a pending or confirmed booking, recording the fee quoted at
// the moment of cancellation.
func (b *Booking) Cancel(quote Quote, now time.Time) error {
	switch b.State {
	case StatePending, StateConfirmed:
	default:
		return ErrInvalidState
	}
	q := quote
	b.State = StateCancelled
	b.LastQuote = &q
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, AdID: b.AdID, Fee: q.FeeAmount, FeePercent: q.FeePercent, At: b.UpdatedAt})
	return nil
}

// Expire rejects a stale pending hold. Used only by the expiry sweeper; the
// transition lands in the same terminal REJECTED state owners reach manually.
func (b *Booking) Expire(now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StateRejected
	b.Reason = "hold expired"
	b.UpdatedAt = now.UTC()
	b.Record(BookingExpired{BookingID: b.ID, AdID: b.AdID, At: b.UpdatedAt})
	return nil
}
