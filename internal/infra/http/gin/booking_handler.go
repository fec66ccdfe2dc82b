package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rently/internal/app/commands"
	"rently/internal/app/dto"
	bookingapp "rently/internal/app/handlers/booking"
	"rently/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	AdID     string `json:"ad_id"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

type rejectBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, err := time.Parse(time.DateOnly, req.DateFrom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_from must be YYYY-MM-DD"})
		return
	}
	to, err := time.Parse(time.DateOnly, req.DateTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_to must be YYYY-MM-DD"})
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		CommandID:       uuid.NewString(),
		AdID:            req.AdID,
		TenantID:        user.ID,
		DateFrom:        from,
		DateTo:          to,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.BookingView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Confirm(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := bookingapp.ConfirmBookingCommand{
		BookingID: c.Param("id"),
		CallerID:  user.ID,
	}
	result, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.BookingView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Reject(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req rejectBookingRequest
	// body is optional, an empty reason gets a default downstream
	_ = c.ShouldBindJSON(&req)
	cmd := bookingapp.RejectBookingCommand{
		BookingID: c.Param("id"),
		CallerID:  user.ID,
		Reason:    req.Reason,
	}
	result, err := commands.Dispatch[bookingapp.RejectBookingCommand, *dto.BookingView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := bookingapp.CancelBookingCommand{
		BookingID: c.Param("id"),
		CallerID:  user.ID,
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.BookingView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) CancelQuote(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := bookingapp.QuoteCancellationQuery{
		BookingID: c.Param("id"),
		CallerID:  user.ID,
	}
	result, err := queries.Ask[bookingapp.QuoteCancellationQuery, dto.QuoteView](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := bookingapp.ListTenantBookingsQuery{
		CallerID: user.ID,
		Status:   c.Query("status"),
	}
	result, err := queries.Ask[bookingapp.ListTenantBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListForAd(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	q := bookingapp.ListAdBookingsQuery{
		AdID:     c.Param("id"),
		CallerID: user.ID,
		Status:   c.Query("status"),
	}
	result, err := queries.Ask[bookingapp.ListAdBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
