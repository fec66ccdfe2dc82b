package availability

import (
	"context"

	"rently/internal/domain/ad"
	"rently/internal/domain/booking"
	"rently/internal/domain/shared/daterange"
)

// Interval is one busy slot of an ad's calendar.
type Interval struct {
	AdID      ad.AdID
	BookingID booking.BookingID
	Range     daterange.DateRange
	State     booking.State
}

// Index answers overlap queries against an ad's bookings without scanning the
// whole booking store. It is a derived view: the booking repository stays the
// single source of truth and any index must be rebuildable from it.
type Index interface {
	// HasConflict reports whether any booking of the ad in one of the given
	// states overlaps the half-open range, ignoring the excluded booking
	// (pass the booking's own id when re-checking it against its peers).
	HasConflict(ctx context.Context, adID ad.AdID, dr daterange.DateRange, states []booking.State, excluding booking.BookingID) (bool, error)

	// Busy returns the ad's intervals in the given states ordered by start
	// date. Used for calendar display; never mutates.
	Busy(ctx context.Context, adID ad.AdID, states []booking.State) ([]Interval, error)
}

// ActiveStates are the states that occupy calendar space for display purposes.
// Only StateConfirmed participates in the non-overlap invariant.
var ActiveStates = []booking.State{booking.StatePending, booking.StateConfirmed}

// ConfirmedOnly is the state filter used by the confirmation conflict check.
var ConfirmedOnly = []booking.State{booking.StateConfirmed}
