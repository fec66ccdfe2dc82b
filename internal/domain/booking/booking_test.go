package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently/internal/domain/ad"
	"rently/internal/domain/shared/daterange"
	"rently/internal/domain/shared/money"
)

var now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func activeAd(t *testing.T) *ad.Ad {
	t.Helper()
	entity, err := ad.New(ad.CreateParams{
		ID:          "ad-1",
		OwnerID:     "owner-1",
		Title:       "Flat near the park",
		PricePerDay: money.Must(10_000, "RUB"),
		IsActive:    true,
		Now:         now,
	})
	require.NoError(t, err)
	return entity
}

func pendingBooking(t *testing.T) *Booking {
	t.Helper()
	b, err := NewBooking(CreateParams{
		ID:       "bk-1",
		Ad:       activeAd(t),
		TenantID: "tenant-1",
		Range:    daterange.Must(now.AddDate(0, 0, 5), now.AddDate(0, 0, 8)),
		Now:      now,
	})
	require.NoError(t, err)
	return b
}

func TestNewBookingComputesTotalCost(t *testing.T) {
	b := pendingBooking(t)

	assert.Equal(t, StatePending, b.State)
	assert.Equal(t, int64(30_000), b.TotalCost.Amount) // 3 nights x 10000
	assert.Equal(t, "RUB", b.TotalCost.Currency)
	require.Len(t, b.PendingEvents(), 1)
	assert.Equal(t, "booking.requested", b.PendingEvents()[0].EventName())
}

func TestNewBookingGuards(t *testing.T) {
	adEntity := activeAd(t)
	futureRange := daterange.Must(now.AddDate(0, 0, 5), now.AddDate(0, 0, 8))

	t.Run("inactive ad", func(t *testing.T) {
		inactive := *adEntity
		inactive.IsActive = false
		_, err := NewBooking(CreateParams{ID: "b", Ad: &inactive, TenantID: "tenant-1", Range: futureRange, Now: now})
		assert.ErrorIs(t, err, ErrAdInactive)
	})

	t.Run("own ad", func(t *testing.T) {
		_, err := NewBooking(CreateParams{ID: "b", Ad: adEntity, TenantID: "owner-1", Range: futureRange, Now: now})
		assert.ErrorIs(t, err, ErrOwnAd)
	})

	t.Run("check-in in the past", func(t *testing.T) {
		past := daterange.Must(now.AddDate(0, 0, -2), now.AddDate(0, 0, 3))
		_, err := NewBooking(CreateParams{ID: "b", Ad: adEntity, TenantID: "tenant-1", Range: past, Now: now})
		assert.ErrorIs(t, err, ErrCheckInPast)
	})

	t.Run("check-in today is allowed", func(t *testing.T) {
		today := daterange.Must(now, now.AddDate(0, 0, 2))
		_, err := NewBooking(CreateParams{ID: "b", Ad: adEntity, TenantID: "tenant-1", Range: today, Now: now})
		assert.NoError(t, err)
	})
}

func TestConfirmOnlyFromPending(t *testing.T) {
	b := pendingBooking(t)
	require.NoError(t, b.Confirm(now))
	assert.Equal(t, StateConfirmed, b.State)

	assert.ErrorIs(t, b.Confirm(now), ErrInvalidState)
	assert.ErrorIs(t, b.Reject("late", now), ErrInvalidState)
}

func TestRejectIsTerminal(t *testing.T) {
	b := pendingBooking(t)
	require.NoError(t, b.Reject("owner declined", now))

	assert.Equal(t, StateRejected, b.State)
	assert.Equal(t, "owner declined", b.Reason)
	assert.True(t, b.State.Terminal())
	assert.ErrorIs(t, b.Confirm(now), ErrInvalidState)
	assert.ErrorIs(t, b.Cancel(Quote{}, now), ErrInvalidState)
}

func TestCancelFromPendingAndConfirmed(t *testing.T) {
	quote := Quote{FeePercent: 30, FeeAmount: money.Must(9_000, "RUB"), TotalCost: money.Must(30_000, "RUB")}

	pending := pendingBooking(t)
	require.NoError(t, pending.Cancel(quote, now))
	assert.Equal(t, StateCancelled, pending.State)
	require.NotNil(t, pending.LastQuote)
	assert.Equal(t, 30, pending.LastQuote.FeePercent)

	confirmed := pendingBooking(t)
	require.NoError(t, confirmed.Confirm(now))
	require.NoError(t, confirmed.Cancel(quote, now))
	assert.Equal(t, StateCancelled, confirmed.State)

	assert.ErrorIs(t, confirmed.Cancel(quote, now), ErrInvalidState)
}

func TestExpireRejectsStaleHold(t *testing.T) {
	b := pendingBooking(t)
	require.NoError(t, b.Expire(now))

	assert.Equal(t, StateRejected, b.State)
	assert.Equal(t, "hold expired", b.Reason)

	confirmed := pendingBooking(t)
	require.NoError(t, confirmed.Confirm(now))
	assert.ErrorIs(t, confirmed.Expire(now), ErrInvalidState)
}
