package uow

import (
	"context"

	domainad "rently/internal/domain/ad"
	domainavailability "rently/internal/domain/availability"
	domainbooking "rently/internal/domain/booking"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Ads() domainad.Repository
	Bookings() domainbooking.Repository
	Availability() domainavailability.Index

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
