package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"rently/internal/app/commands"
	"rently/internal/app/dto"
	"rently/internal/app/middleware"
	"rently/internal/app/outbox"
	"rently/internal/app/uow"
	domainad "rently/internal/domain/ad"
	domainbooking "rently/internal/domain/booking"
	domainrange "rently/internal/domain/shared/daterange"
)

const createBookingKey = "booking.create"

var ErrUnitOfWorkRequired = errors.New("booking: unit of work required")

type CreateBookingCommand struct {
	CommandID       string
	AdID            string
	TenantID        string
	DateFrom        time.Time
	DateTo          time.Time
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.BookingView{} }

func (c CreateBookingCommand) Validate() error {
	if strings.TrimSpace(c.AdID) == "" {
		return errors.New("booking: ad id is required")
	}
	if strings.TrimSpace(c.TenantID) == "" {
		return errors.New("booking: tenant id is required")
	}
	return nil
}

// CreateBookingHandler places a PENDING hold. No overlap check happens here:
// competing holds may coexist until an owner confirms one of them.
type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Clock      func() time.Time
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.BookingView, error) {
	var view dto.BookingView
	err := runInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		dr, err := domainrange.New(cmd.DateFrom, cmd.DateTo)
		if err != nil {
			return err
		}
		adEntity, err := unit.Ads().ByID(ctx, domainad.AdID(cmd.AdID))
		if err != nil {
			return err
		}
		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:       domainbooking.BookingID(cmd.CommandID),
			Ad:       adEntity,
			TenantID: cmd.TenantID,
			Range:    dr,
			Now:      h.now(),
		})
		if err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := drainEvents(ctx, h.Outbox, h.encoder(), b); err != nil {
			return err
		}
		view = dto.MapBookingView(b, adEntity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (h *CreateBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CreateBookingCommand, *dto.BookingView] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateBookingCommand)(nil)
var _ middleware.SelfValidating = (*CreateBookingCommand)(nil)
