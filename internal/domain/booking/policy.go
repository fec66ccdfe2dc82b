package booking

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"rently/internal/domain/shared/daterange"
	"rently/internal/domain/shared/money"
)

var (
	ErrNoTiers        = errors.New("booking: cancellation policy needs at least one tier")
	ErrTiersNotStep   = errors.New("booking: cancellation fee must not grow with notice")
	ErrInvalidPercent = errors.New("booking: fee percent must be within 0..100")
)

// FeeTier maps a minimum notice (full days before check-in) to a fee percent.
type FeeTier struct {
	MinDays int
	Percent int
}

// CancellationPolicy is a monotonically non-increasing step function over the
// notice given before check-in. Tiers are kept sorted by MinDays descending so
// the first matching tier wins.
type CancellationPolicy struct {
	tiers []FeeTier
}

// Quote is the outcome of pricing a hypothetical cancellation. Producing one
// never mutates the booking; the same inputs always yield the same quote.
type Quote struct {
	DaysUntilCheckIn int         `json:"days_until_checkin"`
	FeePercent       int         `json:"fee_percent"`
	FeeAmount        money.Money `json:"fee_amount"`
	TotalCost        money.Money `json:"total_cost"`
	Message          string      `json:"message"`
}

// NewPolicy validates and normalizes the tier table.
func NewPolicy(tiers []FeeTier) (CancellationPolicy, error) {
	if len(tiers) == 0 {
		return CancellationPolicy{}, ErrNoTiers
	}
	sorted := append([]FeeTier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinDays > sorted[j].MinDays })
	prev := -1
	for i := len(sorted) - 1; i >= 0; i-- {
		t := sorted[i]
		if t.Percent < 0 || t.Percent > 100 {
			return CancellationPolicy{}, ErrInvalidPercent
		}
		if t.MinDays < 0 {
			return CancellationPolicy{}, fmt.Errorf("booking: negative notice in tier %d", i)
		}
		// walking from least to most notice, the fee must only go down
		if prev >= 0 && t.Percent > prev {
			return CancellationPolicy{}, ErrTiersNotStep
		}
		prev = t.Percent
	}
	return CancellationPolicy{tiers: sorted}, nil
}

// DefaultPolicy mirrors the marketplace default: free with three or more days
// of notice, 30% with one, 60% on the day of check-in.
func DefaultPolicy() CancellationPolicy {
	p, err := NewPolicy([]FeeTier{{MinDays: 3, Percent: 0}, {MinDays: 1, Percent: 30}, {MinDays: 0, Percent: 60}})
	if err != nil {
		panic(err)
	}
	return p
}

// Tiers exposes a copy of the normalized table.
func (p CancellationPolicy) Tiers() []FeeTier {
	return append([]FeeTier(nil), p.tiers...)
}

// Quote prices cancelling the booking as of the given instant. Notice is the
// number of whole days between asOf and check-in, clamped at zero once the
// stay has started.
func (p CancellationPolicy) Quote(b *Booking, asOf time.Time) Quote {
	if len(p.tiers) == 0 {
		p = DefaultPolicy()
	}
	days := int(b.Range.From.Sub(daterange.Day(asOf)) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	// below the smallest configured notice the steepest tier applies
	percent := p.tiers[len(p.tiers)-1].Percent
	for _, tier := range p.tiers {
		if days >= tier.MinDays {
			percent = tier.Percent
			break
		}
	}
	fee := b.TotalCost.Percent(percent)
	msg := "free cancellation"
	if percent > 0 {
		msg = fmt.Sprintf("cancelling %d day(s) before check-in incurs a %d%% fee", days, percent)
	}
	return Quote{
		DaysUntilCheckIn: days,
		FeePercent:       percent,
		FeeAmount:        fee,
		TotalCost:        b.TotalCost,
		Message:          msg,
	}
}
