package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rently/internal/app/dto"
	availabilityapp "rently/internal/app/handlers/availability"
	"rently/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

// Busy serves an ad's occupied calendar slots. Public endpoint.
func (h AvailabilityHandler) Busy(c *gin.Context) {
	q := availabilityapp.GetBusyIntervalsQuery{
		AdID:          c.Param("id"),
		ConfirmedOnly: c.Query("confirmed_only") == "true",
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		q.WindowFrom = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		q.WindowTo = to
	}
	result, err := queries.Ask[availabilityapp.GetBusyIntervalsQuery, dto.AvailabilityView](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
