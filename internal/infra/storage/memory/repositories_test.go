package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainad "rently/internal/domain/ad"
	domainavailability "rently/internal/domain/availability"
	domainbooking "rently/internal/domain/booking"
	"rently/internal/domain/shared/daterange"
	"rently/internal/domain/shared/money"
)

var testNow = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

func seedAd(t *testing.T, repo *AdRepository, id, owner string) *domainad.Ad {
	t.Helper()
	entity, err := domainad.New(domainad.CreateParams{
		ID:          domainad.AdID(id),
		OwnerID:     owner,
		Title:       "Studio downtown",
		PricePerDay: money.Must(5_000, "RUB"),
		IsActive:    true,
		Now:         testNow,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), entity))
	return entity
}

func seedBooking(t *testing.T, repo *BookingRepository, adEntity *domainad.Ad, id, tenant string, from, to int, state domainbooking.State) *domainbooking.Booking {
	t.Helper()
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:       domainbooking.BookingID(id),
		Ad:       adEntity,
		TenantID: tenant,
		Range:    daterange.Must(testNow.AddDate(0, 0, from), testNow.AddDate(0, 0, to)),
		Now:      testNow,
	})
	require.NoError(t, err)
	b.ClearEvents()
	if state == domainbooking.StateConfirmed {
		require.NoError(t, b.Confirm(testNow))
	}
	require.NoError(t, repo.Save(context.Background(), b))
	return b
}

func TestBookingRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	ads := NewAdRepository()
	bookings := NewBookingRepository()
	adEntity := seedAd(t, ads, "ad-1", "owner-1")

	_, err := bookings.ByID(ctx, "missing")
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)

	saved := seedBooking(t, bookings, adEntity, "bk-1", "tenant-1", 5, 8, domainbooking.StatePending)
	loaded, err := bookings.ByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Range, loaded.Range)
	assert.Equal(t, domainbooking.StatePending, loaded.State)

	// snapshots: mutating the loaded copy must not leak into the store
	loaded.State = domainbooking.StateCancelled
	fresh, err := bookings.ByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePending, fresh.State)
}

func TestBookingRepositoryVersionConflict(t *testing.T) {
	ctx := context.Background()
	ads := NewAdRepository()
	bookings := NewBookingRepository()
	adEntity := seedAd(t, ads, "ad-1", "owner-1")
	seedBooking(t, bookings, adEntity, "bk-1", "tenant-1", 5, 8, domainbooking.StatePending)

	first, err := bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)
	second, err := bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)

	require.NoError(t, first.Confirm(testNow))
	require.NoError(t, bookings.Save(ctx, first))

	require.NoError(t, second.Reject("late", testNow))
	assert.ErrorIs(t, bookings.Save(ctx, second), ErrVersionConflict)
}

func TestHasConflictHonorsStatesAndExclusion(t *testing.T) {
	ctx := context.Background()
	ads := NewAdRepository()
	bookings := NewBookingRepository()
	adEntity := seedAd(t, ads, "ad-1", "owner-1")

	confirmed := seedBooking(t, bookings, adEntity, "bk-confirmed", "tenant-1", 10, 15, domainbooking.StateConfirmed)
	seedBooking(t, bookings, adEntity, "bk-pending", "tenant-2", 12, 14, domainbooking.StatePending)

	overlap := daterange.Must(testNow.AddDate(0, 0, 14), testNow.AddDate(0, 0, 18))
	adjacent := daterange.Must(testNow.AddDate(0, 0, 15), testNow.AddDate(0, 0, 18))

	got, err := bookings.HasConflict(ctx, adEntity.ID, overlap, domainavailability.ConfirmedOnly, "")
	require.NoError(t, err)
	assert.True(t, got)

	// half-open ranges: checkout day is free for the next check-in
	got, err = bookings.HasConflict(ctx, adEntity.ID, adjacent, domainavailability.ConfirmedOnly, "")
	require.NoError(t, err)
	assert.False(t, got)

	// pending holds never block when only confirmed states are considered
	pendingOnly := daterange.Must(testNow.AddDate(0, 0, 16), testNow.AddDate(0, 0, 20))
	got, err = bookings.HasConflict(ctx, adEntity.ID, pendingOnly, domainavailability.ConfirmedOnly, "")
	require.NoError(t, err)
	assert.False(t, got)

	// a booking never conflicts with itself
	got, err = bookings.HasConflict(ctx, adEntity.ID, confirmed.Range, domainavailability.ConfirmedOnly, confirmed.ID)
	require.NoError(t, err)
	assert.False(t, got)

	// other ads are invisible
	otherAd := seedAd(t, ads, "ad-2", "owner-2")
	got, err = bookings.HasConflict(ctx, otherAd.ID, overlap, domainavailability.ActiveStates, "")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestBusyReturnsOrderedIntervals(t *testing.T) {
	ctx := context.Background()
	ads := NewAdRepository()
	bookings := NewBookingRepository()
	adEntity := seedAd(t, ads, "ad-1", "owner-1")

	seedBooking(t, bookings, adEntity, "bk-late", "tenant-1", 20, 25, domainbooking.StateConfirmed)
	seedBooking(t, bookings, adEntity, "bk-early", "tenant-2", 5, 8, domainbooking.StatePending)
	rejected := seedBooking(t, bookings, adEntity, "bk-rejected", "tenant-3", 9, 12, domainbooking.StatePending)
	require.NoError(t, rejected.Reject("late", testNow))
	require.NoError(t, bookings.Save(ctx, rejected))

	intervals, err := bookings.Busy(ctx, adEntity.ID, domainavailability.ActiveStates)
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.Equal(t, domainbooking.BookingID("bk-early"), intervals[0].BookingID)
	assert.Equal(t, domainbooking.BookingID("bk-late"), intervals[1].BookingID)
}
