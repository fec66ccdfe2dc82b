package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rently/internal/app/commands"
	"rently/internal/app/dto"
	handlersupport "rently/internal/app/handlers/support"
	"rently/internal/app/outbox"
	"rently/internal/app/queries"
	"rently/internal/app/uow"
	domainbooking "rently/internal/domain/booking"
	domainrange "rently/internal/domain/shared/daterange"
)

const (
	cancelBookingKey     = "booking.cancel"
	quoteCancellationKey = "booking.cancel_quote"
)

type CancelBookingCommand struct {
	BookingID string
	CallerID  string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

// CancelBookingHandler ends a pending or confirmed booking on behalf of its
// tenant, pricing the fee at the moment of cancellation and recording it on
// the booking.
type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Policy     domainbooking.CancellationPolicy
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Clock      func() time.Time
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.BookingView, error) {
	callerID := strings.TrimSpace(cmd.CallerID)
	if callerID == "" {
		return nil, domainbooking.ErrForbidden
	}
	var view dto.BookingView
	err := runInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		if b.TenantID != callerID {
			return domainbooking.ErrForbidden
		}
		if b.State.Terminal() {
			return domainbooking.ErrInvalidState
		}
		now := h.now()
		if !b.Range.From.After(domainrange.Day(now)) {
			return domainbooking.ErrAlreadyStarted
		}
		quote := h.Policy.Quote(b, now)
		if err := b.Cancel(quote, now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := drainEvents(ctx, h.Outbox, h.encoder(), b); err != nil {
			return err
		}
		adEntity, err := unit.Ads().ByID(ctx, b.AdID)
		if err != nil {
			return err
		}
		if h.Logger != nil {
			h.Logger.Info("booking cancelled", "booking_id", b.ID, "ad_id", b.AdID,
				"fee_percent", quote.FeePercent, "fee_amount", quote.FeeAmount.Amount)
		}
		view = dto.MapBookingView(b, adEntity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (h *CancelBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CancelBookingHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

type QuoteCancellationQuery struct {
	BookingID string
	CallerID  string
}

func (q QuoteCancellationQuery) Key() string { return quoteCancellationKey }

// QuoteCancellationHandler prices a hypothetical cancellation. It is strictly
// read-only; asking twice at the same instant returns identical results.
type QuoteCancellationHandler struct {
	UoWFactory uow.UoWFactory
	Policy     domainbooking.CancellationPolicy
	Clock      func() time.Time
}

func (h *QuoteCancellationHandler) Handle(ctx context.Context, q QuoteCancellationQuery) (dto.QuoteView, error) {
	callerID := strings.TrimSpace(q.CallerID)
	if callerID == "" {
		return dto.QuoteView{}, domainbooking.ErrForbidden
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.QuoteView{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.QuoteView{}, err
	}
	adEntity, err := unit.Ads().ByID(execCtx, b.AdID)
	if err != nil {
		return dto.QuoteView{}, err
	}
	// both sides of the deal may ask what cancelling would cost
	if b.TenantID != callerID && adEntity.OwnerID != callerID {
		return dto.QuoteView{}, domainbooking.ErrForbidden
	}
	if b.State.Terminal() {
		return dto.QuoteView{}, domainbooking.ErrInvalidState
	}
	quote := h.Policy.Quote(b, h.now())
	return dto.MapQuoteView(quote), nil
}

func (h *QuoteCancellationHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CancelBookingCommand, *dto.BookingView] = (*CancelBookingHandler)(nil)
var _ queries.Handler[QuoteCancellationQuery, dto.QuoteView] = (*QuoteCancellationHandler)(nil)
