package dto

import (
	"time"

	domainad "rently/internal/domain/ad"
	domainbooking "rently/internal/domain/booking"
	"rently/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// BookingView is the canonical read model of a booking returned by every
// command and query that touches one.
type BookingView struct {
	ID        string     `json:"id"`
	AdID      string     `json:"ad_id"`
	AdTitle   string     `json:"ad_title,omitempty"`
	TenantID  string     `json:"tenant_id"`
	OwnerID   string     `json:"owner_id,omitempty"`
	DateFrom  string     `json:"date_from"`
	DateTo    string     `json:"date_to"`
	Nights    int        `json:"nights"`
	Status    string     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	TotalCost MoneyDTO   `json:"total_cost"`
	LastQuote *QuoteView `json:"last_quote,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type BookingCollection struct {
	Items []BookingView `json:"items"`
}

// QuoteView mirrors a cancellation quote for transport.
type QuoteView struct {
	DaysUntilCheckIn int      `json:"days_until_checkin"`
	FeePercent       int      `json:"fee_percent"`
	FeeAmount        MoneyDTO `json:"fee_amount"`
	TotalCost        MoneyDTO `json:"total_cost"`
	Message          string   `json:"message"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

func MapQuoteView(q domainbooking.Quote) QuoteView {
	return QuoteView{
		DaysUntilCheckIn: q.DaysUntilCheckIn,
		FeePercent:       q.FeePercent,
		FeeAmount:        MapMoney(q.FeeAmount),
		TotalCost:        MapMoney(q.TotalCost),
		Message:          q.Message,
	}
}

// MapBookingView enriches the booking with the ad's title and owner when the
// ad is available; a nil ad still produces a usable view.
func MapBookingView(booking *domainbooking.Booking, ad *domainad.Ad) BookingView {
	view := BookingView{
		ID:        string(booking.ID),
		AdID:      string(booking.AdID),
		TenantID:  booking.TenantID,
		DateFrom:  booking.Range.From.Format(time.DateOnly),
		DateTo:    booking.Range.To.Format(time.DateOnly),
		Nights:    booking.Range.Nights(),
		Status:    string(booking.State),
		Reason:    booking.Reason,
		TotalCost: MapMoney(booking.TotalCost),
		CreatedAt: booking.CreatedAt,
		UpdatedAt: booking.UpdatedAt,
	}
	if ad != nil {
		view.AdTitle = ad.Title
		view.OwnerID = ad.OwnerID
	}
	if booking.LastQuote != nil {
		quote := MapQuoteView(*booking.LastQuote)
		view.LastQuote = &quote
	}
	return view
}

func MapBookingCollection(bookings []*domainbooking.Booking, ads map[domainad.AdID]*domainad.Ad) BookingCollection {
	items := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, MapBookingView(b, ads[b.AdID]))
	}
	return BookingCollection{Items: items}
}
