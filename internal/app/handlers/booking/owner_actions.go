package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rently/internal/app/commands"
	"rently/internal/app/dto"
	handlersupport "rently/internal/app/handlers/support"
	"rently/internal/app/middleware"
	"rently/internal/app/outbox"
	"rently/internal/app/policies"
	"rently/internal/app/uow"
	domainad "rently/internal/domain/ad"
	domainavailability "rently/internal/domain/availability"
	domainbooking "rently/internal/domain/booking"
)

const (
	confirmBookingKey = "booking.confirm"
	rejectBookingKey  = "booking.reject"

	defaultLockWait    = 250 * time.Millisecond
	defaultLockRetries = 3
)

type ConfirmBookingCommand struct {
	BookingID string
	CallerID  string
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

// ManagesOwnTransaction keeps the transaction middleware out of the confirm
// path: the handler must commit while it still holds the per-ad lock, or a
// competing confirm could read a snapshot taken before this one became visible.
func (c ConfirmBookingCommand) ManagesOwnTransaction() bool { return true }

type RejectBookingCommand struct {
	BookingID string
	CallerID  string
	Reason    string
}

func (c RejectBookingCommand) Key() string { return rejectBookingKey }

// ConfirmBookingHandler promotes a PENDING booking to CONFIRMED. The overlap
// check and the state write happen under a per-ad lock so that of two racing
// confirmations exactly one can succeed.
type ConfirmBookingHandler struct {
	UoWFactory  uow.UoWFactory
	Locker      policies.AdLocker
	Hold        policies.HoldPolicy
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	LockWait    time.Duration
	LockRetries int
	Logger      *slog.Logger
	Clock       func() time.Time
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.BookingView, error) {
	callerID := strings.TrimSpace(cmd.CallerID)
	if callerID == "" {
		return nil, domainbooking.ErrForbidden
	}

	// Unlocked pre-flight: cheap authorization and state checks, and the ad id
	// that keys the lock.
	adID, err := h.preflight(ctx, domainbooking.BookingID(cmd.BookingID), callerID)
	if err != nil {
		return nil, err
	}

	release, err := h.acquire(ctx, adID, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	defer release()

	// The whole writable transaction runs under the lock. Its first read, the
	// conflict check and the commit all happen before release, so a competing
	// confirm can neither read a stale snapshot nor slip in between check and
	// commit.
	var view dto.BookingView
	err = runInFreshUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		adEntity, err := unit.Ads().ByID(ctx, b.AdID)
		if err != nil {
			return err
		}
		if adEntity.OwnerID != callerID {
			return domainbooking.ErrForbidden
		}
		if b.State != domainbooking.StatePending {
			return domainbooking.ErrInvalidState
		}
		conflict, err := unit.Availability().HasConflict(ctx, b.AdID, b.Range, domainavailability.ConfirmedOnly, b.ID)
		if err != nil {
			return err
		}
		if conflict {
			return domainbooking.ErrDatesConflict
		}
		now := h.now()
		if err := b.Confirm(now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := drainEvents(ctx, h.Outbox, h.encoder(), b); err != nil {
			return err
		}
		if h.Hold.AutoRejectOverlapping {
			if err := h.rejectCompetingHolds(ctx, unit, b, now); err != nil {
				return err
			}
		}
		if h.Logger != nil {
			h.Logger.Info("booking confirmed", "booking_id", b.ID, "ad_id", b.AdID, "owner_id", callerID)
		}
		view = dto.MapBookingView(b, adEntity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// preflight rejects obviously bad confirms before any lock is taken. Every
// check is repeated inside the locked transaction; this read only exists to
// fail fast and to discover the ad that keys the lock.
func (h *ConfirmBookingHandler) preflight(ctx context.Context, bookingID domainbooking.BookingID, callerID string) (domainad.AdID, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return "", err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, bookingID)
	if err != nil {
		return "", err
	}
	adEntity, err := unit.Ads().ByID(execCtx, b.AdID)
	if err != nil {
		return "", err
	}
	if adEntity.OwnerID != callerID {
		return "", domainbooking.ErrForbidden
	}
	if b.State != domainbooking.StatePending {
		return "", domainbooking.ErrInvalidState
	}
	return b.AdID, nil
}

// acquire takes the per-ad lock with a bounded wait and a small number of
// retries; exhaustion surfaces as retryable contention, never as a silent
// double booking.
func (h *ConfirmBookingHandler) acquire(ctx context.Context, adID domainad.AdID, bookingID domainbooking.BookingID) (policies.ReleaseFunc, error) {
	if h.Locker == nil {
		return func() {}, nil
	}
	wait := h.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	retries := h.LockRetries
	if retries <= 0 {
		retries = defaultLockRetries
	}
	for attempt := 0; attempt < retries; attempt++ {
		release, err := h.Locker.Acquire(ctx, adID, wait)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, policies.ErrLockBusy) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if h.Logger != nil {
		h.Logger.Warn("ad lock contention", "ad_id", adID, "booking_id", bookingID, "retries", retries)
	}
	return nil, domainbooking.ErrContention
}

func (h *ConfirmBookingHandler) rejectCompetingHolds(ctx context.Context, unit uow.UnitOfWork, winner *domainbooking.Booking, now time.Time) error {
	peers, err := unit.Bookings().ListByAd(ctx, winner.AdID)
	if err != nil {
		return err
	}
	for _, peer := range peers {
		if peer.ID == winner.ID || peer.State != domainbooking.StatePending {
			continue
		}
		if !peer.Range.Overlaps(winner.Range) {
			continue
		}
		if err := peer.Reject("overlaps a confirmed booking", now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, peer); err != nil {
			return err
		}
		if err := drainEvents(ctx, h.Outbox, h.encoder(), peer); err != nil {
			return err
		}
		if h.Logger != nil {
			h.Logger.Info("competing hold rejected", "booking_id", peer.ID, "ad_id", peer.AdID, "winner_id", winner.ID)
		}
	}
	return nil
}

func (h *ConfirmBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *ConfirmBookingHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

// RejectBookingHandler declines a PENDING booking. Per-booking atomicity is
// enough here: rejections cannot violate the non-overlap invariant.
type RejectBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Clock      func() time.Time
}

func (h *RejectBookingHandler) Handle(ctx context.Context, cmd RejectBookingCommand) (*dto.BookingView, error) {
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
		adEntity, err := unit.Ads().ByID(ctx, b.AdID)
		if err != nil {
			return err
		}
		if adEntity.OwnerID != callerID {
			return domainbooking.ErrForbidden
		}
		reason := strings.TrimSpace(cmd.Reason)
		if reason == "" {
			reason = "owner declined"
		}
		if err := b.Reject(reason, h.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := drainEvents(ctx, h.Outbox, h.encoder(), b); err != nil {
			return err
		}
		if h.Logger != nil {
			h.Logger.Info("booking rejected", "booking_id", b.ID, "ad_id", b.AdID, "reason", reason)
		}
		view = dto.MapBookingView(b, adEntity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (h *RejectBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *RejectBookingHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[ConfirmBookingCommand, *dto.BookingView] = (*ConfirmBookingHandler)(nil)
var _ commands.Handler[RejectBookingCommand, *dto.BookingView] = (*RejectBookingHandler)(nil)
var _ middleware.SelfManagedTransaction = ConfirmBookingCommand{}
