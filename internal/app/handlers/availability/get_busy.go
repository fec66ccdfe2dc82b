package availability

import (
	"context"
	"time"

	"rently/internal/app/dto"
	handlersupport "rently/internal/app/handlers/support"
	"rently/internal/app/queries"
	"rently/internal/app/uow"
	domainad "rently/internal/domain/ad"
	domainavailability "rently/internal/domain/availability"
	"rently/internal/domain/shared/daterange"
)

const getBusyIntervalsKey = "availability.get_busy"

// GetBusyIntervalsQuery lists the occupied slots of an ad's calendar. Public:
// anyone planning a stay may look. Window bounds are optional; when both are
// set, intervals are clipped to the window.
type GetBusyIntervalsQuery struct {
	AdID          string
	WindowFrom    time.Time
	WindowTo      time.Time
	ConfirmedOnly bool
}

func (q GetBusyIntervalsQuery) Key() string { return getBusyIntervalsKey }

type GetBusyIntervalsHandler struct {
	UoWFactory uow.UoWFactory
	Clock      func() time.Time
}

func (h *GetBusyIntervalsHandler) Handle(ctx context.Context, q GetBusyIntervalsQuery) (dto.AvailabilityView, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.AvailabilityView{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	adEntity, err := unit.Ads().ByID(execCtx, domainad.AdID(q.AdID))
	if err != nil {
		return dto.AvailabilityView{}, err
	}
	states := domainavailability.ActiveStates
	if q.ConfirmedOnly {
		states = domainavailability.ConfirmedOnly
	}
	intervals, err := unit.Availability().Busy(execCtx, adEntity.ID, states)
	if err != nil {
		return dto.AvailabilityView{}, err
	}
	if window, ok := h.window(q); ok {
		clipped := intervals[:0]
		for _, iv := range intervals {
			cut, ok := iv.Range.Clip(window)
			if !ok {
				continue
			}
			iv.Range = cut
			clipped = append(clipped, iv)
		}
		intervals = clipped
	}
	return dto.MapAvailabilityView(string(adEntity.ID), intervals, h.now()), nil
}

func (h *GetBusyIntervalsHandler) window(q GetBusyIntervalsQuery) (daterange.DateRange, bool) {
	if q.WindowFrom.IsZero() || q.WindowTo.IsZero() {
		return daterange.DateRange{}, false
	}
	window, err := daterange.New(q.WindowFrom, q.WindowTo)
	if err != nil {
		return daterange.DateRange{}, false
	}
	return window, true
}

func (h *GetBusyIntervalsHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

var _ queries.Handler[GetBusyIntervalsQuery, dto.AvailabilityView] = (*GetBusyIntervalsHandler)(nil)
