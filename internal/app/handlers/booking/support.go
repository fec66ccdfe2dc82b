package booking

import (
	"context"

	"rently/internal/app/outbox"
	"rently/internal/app/uow"
	domainbooking "rently/internal/domain/booking"
)

// runInUnit reuses the transaction started by the middleware chain when one is
// present, otherwise manages its own unit of work around fn.
func runInUnit(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	return runInFreshUnit(ctx, factory, fn)
}

// runInFreshUnit always begins its own unit of work, even when the bus already
// put one in the context. The confirm path needs this: its per-ad lock must be
// held across the commit, so the transaction cannot outlive the handler.
func runInFreshUnit(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if factory == nil {
		return ErrUnitOfWorkRequired
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		ctx = injector.InjectContext(ctx)
	}
	ctx = uow.ContextWithUnitOfWork(ctx, unit)
	if err := fn(ctx, unit); err != nil {
		_ = unit.Rollback(ctx)
		return err
	}
	return unit.Commit(ctx)
}

// drainEvents moves the aggregate's pending events into the outbox.
func drainEvents(ctx context.Context, box outbox.Outbox, enc outbox.EventEncoder, b *domainbooking.Booking) error {
	pending := b.PendingEvents()
	b.ClearEvents()
	return outbox.RecordDomainEvents(ctx, box, enc, pending)
}
