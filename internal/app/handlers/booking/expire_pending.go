package booking

import (
	"context"
	"log/slog"
	"time"

	"rently/internal/app/commands"
	"rently/internal/app/outbox"
	"rently/internal/app/uow"
)

const expirePendingKey = "booking.expire_pending"

// ExpirePendingCommand rejects PENDING holds older than the TTL. Dispatched by
// the background sweeper, never by an HTTP route.
type ExpirePendingCommand struct {
	TTL time.Duration
}

func (c ExpirePendingCommand) Key() string { return expirePendingKey }

type ExpirePendingResult struct {
	Expired int
}

type ExpirePendingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Clock      func() time.Time
}

func (h *ExpirePendingHandler) Handle(ctx context.Context, cmd ExpirePendingCommand) (ExpirePendingResult, error) {
	if cmd.TTL <= 0 {
		return ExpirePendingResult{}, nil
	}
	now := h.now()
	cutoff := now.Add(-cmd.TTL)
	var result ExpirePendingResult
	err := runInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		stale, err := unit.Bookings().ListPendingCreatedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, b := range stale {
			if err := b.Expire(now); err != nil {
				// lost a race with a confirm or reject; skip, not an error
				continue
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			if err := drainEvents(ctx, h.Outbox, h.encoder(), b); err != nil {
				return err
			}
			result.Expired++
		}
		return nil
	})
	if err != nil {
		return ExpirePendingResult{}, err
	}
	if result.Expired > 0 && h.Logger != nil {
		h.Logger.Info("expired stale holds", "count", result.Expired, "cutoff", cutoff)
	}
	return result, nil
}

func (h *ExpirePendingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *ExpirePendingHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[ExpirePendingCommand, ExpirePendingResult] = (*ExpirePendingHandler)(nil)
