package memory

import (
	"context"
	"errors"

	"rently/internal/app/uow"
	domainad "rently/internal/domain/ad"
	domainavailability "rently/internal/domain/availability"
	domainbooking "rently/internal/domain/booking"
)

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	AdsRepo      domainad.Repository
	BookingRepo  domainbooking.Repository
	Availability domainavailability.Index
}

// Begin starts a lightweight transaction boundary. No isolation is provided
// but the abstraction matches the application ports; callers that need
// serialization take the per-ad lock.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.AdsRepo == nil || f.BookingRepo == nil || f.Availability == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		ads:          f.AdsRepo,
		bookings:     f.BookingRepo,
		availability: f.Availability,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	ads          domainad.Repository
	bookings     domainbooking.Repository
	availability domainavailability.Index
}

func (u *Unit) Ads() domainad.Repository {
	return u.ads
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) Availability() domainavailability.Index {
	return u.availability
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}
