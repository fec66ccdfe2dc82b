package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently/internal/domain/shared/daterange"
	"rently/internal/domain/shared/money"
)

func bookingStarting(t *testing.T, checkIn time.Time) *Booking {
	t.Helper()
	b := pendingBooking(t)
	b.Range = daterange.Must(checkIn, checkIn.AddDate(0, 0, 3))
	b.TotalCost = money.Must(30_000, "RUB")
	return b
}

func TestNewPolicyValidation(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewPolicy(nil)
		assert.ErrorIs(t, err, ErrNoTiers)
	})

	t.Run("percent out of range", func(t *testing.T) {
		_, err := NewPolicy([]FeeTier{{MinDays: 0, Percent: 120}})
		assert.ErrorIs(t, err, ErrInvalidPercent)
	})

	t.Run("fee growing with notice", func(t *testing.T) {
		_, err := NewPolicy([]FeeTier{{MinDays: 3, Percent: 50}, {MinDays: 0, Percent: 10}})
		assert.ErrorIs(t, err, ErrTiersNotStep)
	})

	t.Run("sorted regardless of input order", func(t *testing.T) {
		p, err := NewPolicy([]FeeTier{{MinDays: 0, Percent: 60}, {MinDays: 3, Percent: 0}, {MinDays: 1, Percent: 30}})
		require.NoError(t, err)
		tiers := p.Tiers()
		assert.Equal(t, []FeeTier{{MinDays: 3, Percent: 0}, {MinDays: 1, Percent: 30}, {MinDays: 0, Percent: 60}}, tiers)
	})
}

func TestQuoteDefaultTiers(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name        string
		daysBefore  int
		wantPercent int
		wantFee     int64
	}{
		{"a week ahead is free", 7, 0, 0},
		{"exactly three days is free", 3, 0, 0},
		{"two days costs 30 percent", 2, 30, 9_000},
		{"one day costs 30 percent", 1, 30, 9_000},
		{"day of check-in costs 60 percent", 0, 60, 18_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkIn := now.AddDate(0, 0, tt.daysBefore)
			b := bookingStarting(t, checkIn)

			q := policy.Quote(b, now)
			assert.Equal(t, tt.daysBefore, q.DaysUntilCheckIn)
			assert.Equal(t, tt.wantPercent, q.FeePercent)
			assert.Equal(t, tt.wantFee, q.FeeAmount.Amount)
			assert.Equal(t, b.TotalCost, q.TotalCost)
		})
	}
}

func TestQuoteClampsStartedStays(t *testing.T) {
	b := bookingStarting(t, now.AddDate(0, 0, 10))
	asOf := now.AddDate(0, 0, 12) // two days into the stay

	q := DefaultPolicy().Quote(b, asOf)
	assert.Equal(t, 0, q.DaysUntilCheckIn)
	assert.Equal(t, 60, q.FeePercent)
}

func TestQuoteIsIdempotent(t *testing.T) {
	b := bookingStarting(t, now.AddDate(0, 0, 2))
	policy := DefaultPolicy()

	first := policy.Quote(b, now)
	second := policy.Quote(b, now)
	assert.Equal(t, first, second)
	assert.Equal(t, StatePending, b.State)
	assert.Nil(t, b.LastQuote)
}

func TestQuoteFeeTruncates(t *testing.T) {
	b := bookingStarting(t, now.AddDate(0, 0, 1))
	b.TotalCost = money.Must(101, "RUB")

	q := DefaultPolicy().Quote(b, now)
	assert.Equal(t, int64(30), q.FeeAmount.Amount) // 101 * 30% = 30.3, truncated
}

func TestQuoteZeroPolicyFallsBackToDefault(t *testing.T) {
	b := bookingStarting(t, now)
	q := CancellationPolicy{}.Quote(b, now)
	assert.Equal(t, 60, q.FeePercent)
}

func TestQuoteCustomSingleTier(t *testing.T) {
	policy, err := NewPolicy([]FeeTier{{MinDays: 5, Percent: 10}})
	require.NoError(t, err)

	far := bookingStarting(t, now.AddDate(0, 0, 9))
	assert.Equal(t, 10, policy.Quote(far, now).FeePercent)

	// below the smallest configured notice the steepest tier still applies
	near := bookingStarting(t, now.AddDate(0, 0, 1))
	assert.Equal(t, 10, policy.Quote(near, now).FeePercent)
}
