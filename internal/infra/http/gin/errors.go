package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	domainad "rently/internal/domain/ad"
	domainbooking "rently/internal/domain/booking"
	domainrange "rently/internal/domain/shared/daterange"
)

// respondBookingError maps domain sentinels onto HTTP statuses. Contention is
// the only 503: the request was valid, the caller should simply retry.
func respondBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainbooking.ErrNotFound), errors.Is(err, domainad.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrContention):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrDatesConflict),
		errors.Is(err, domainbooking.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domainrange.ErrInvalidRange),
		errors.Is(err, domainbooking.ErrAdInactive),
		errors.Is(err, domainbooking.ErrOwnAd),
		errors.Is(err, domainbooking.ErrCheckInPast),
		errors.Is(err, domainbooking.ErrAlreadyStarted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
