package dto

import (
	"time"

	domainavailability "rently/internal/domain/availability"
)

// BusyIntervalView is one occupied slot of an ad's calendar.
type BusyIntervalView struct {
	BookingID string `json:"booking_id"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
	Status    string `json:"status"`
}

type AvailabilityView struct {
	AdID string             `json:"ad_id"`
	Busy []BusyIntervalView `json:"busy"`
	AsOf time.Time          `json:"as_of"`
}

func MapAvailabilityView(adID string, intervals []domainavailability.Interval, asOf time.Time) AvailabilityView {
	busy := make([]BusyIntervalView, 0, len(intervals))
	for _, iv := range intervals {
		busy = append(busy, BusyIntervalView{
			BookingID: string(iv.BookingID),
			DateFrom:  iv.Range.From.Format(time.DateOnly),
			DateTo:    iv.Range.To.Format(time.DateOnly),
			Status:    string(iv.State),
		})
	}
	return AvailabilityView{AdID: adID, Busy: busy, AsOf: asOf}
}
