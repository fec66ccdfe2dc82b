package booking

import (
	"context"
	"errors"
	"strings"

	"rently/internal/app/dto"
	handlersupport "rently/internal/app/handlers/support"
	"rently/internal/app/queries"
	"rently/internal/app/uow"
	domainad "rently/internal/domain/ad"
	domainbooking "rently/internal/domain/booking"
)

const (
	listTenantBookingsKey = "booking.list_tenant"
	listAdBookingsKey     = "booking.list_ad"
)

// ListTenantBookingsQuery returns the caller's own bookings, newest first,
// optionally narrowed to a single status.
type ListTenantBookingsQuery struct {
	CallerID string
	Status   string
}

func (q ListTenantBookingsQuery) Key() string { return listTenantBookingsKey }

type ListTenantBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListTenantBookingsHandler) Handle(ctx context.Context, q ListTenantBookingsQuery) (dto.BookingCollection, error) {
	callerID := strings.TrimSpace(q.CallerID)
	if callerID == "" {
		return dto.BookingCollection{}, domainbooking.ErrForbidden
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Bookings().ListByTenant(execCtx, callerID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	items = filterByStatus(items, q.Status)
	ads, err := collectAds(execCtx, unit, items)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookingCollection(items, ads), nil
}

// ListAdBookingsQuery returns every booking on an ad. Only the ad's owner may
// see the full list.
type ListAdBookingsQuery struct {
	AdID     string
	CallerID string
	Status   string
}

func (q ListAdBookingsQuery) Key() string { return listAdBookingsKey }

type ListAdBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListAdBookingsHandler) Handle(ctx context.Context, q ListAdBookingsQuery) (dto.BookingCollection, error) {
	callerID := strings.TrimSpace(q.CallerID)
	if callerID == "" {
		return dto.BookingCollection{}, domainbooking.ErrForbidden
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	adEntity, err := unit.Ads().ByID(execCtx, domainad.AdID(q.AdID))
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if adEntity.OwnerID != callerID {
		return dto.BookingCollection{}, domainbooking.ErrForbidden
	}
	items, err := unit.Bookings().ListByAd(execCtx, adEntity.ID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	items = filterByStatus(items, q.Status)
	ads := map[domainad.AdID]*domainad.Ad{adEntity.ID: adEntity}
	return dto.MapBookingCollection(items, ads), nil
}

func filterByStatus(items []*domainbooking.Booking, status string) []*domainbooking.Booking {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return items
	}
	filtered := items[:0]
	for _, b := range items {
		if string(b.State) == status {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

func collectAds(ctx context.Context, unit uow.UnitOfWork, items []*domainbooking.Booking) (map[domainad.AdID]*domainad.Ad, error) {
	ads := make(map[domainad.AdID]*domainad.Ad)
	for _, b := range items {
		if _, ok := ads[b.AdID]; ok {
			continue
		}
		adEntity, err := unit.Ads().ByID(ctx, b.AdID)
		if errors.Is(err, domainad.ErrNotFound) {
			// a booking may outlive its ad; keep the row, drop the title
			ads[b.AdID] = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		ads[b.AdID] = adEntity
	}
	return ads, nil
}

var _ queries.Handler[ListTenantBookingsQuery, dto.BookingCollection] = (*ListTenantBookingsHandler)(nil)
var _ queries.Handler[ListAdBookingsQuery, dto.BookingCollection] = (*ListAdBookingsHandler)(nil)
