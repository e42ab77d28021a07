// Package http provides HTTP handlers for booking operations.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/booking/http/dto"
	"github.com/allisson/bookings/internal/httputil"

	bookingUseCase "github.com/allisson/bookings/internal/booking/usecase"
	idempotencyHTTP "github.com/allisson/bookings/internal/idempotency/http"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	bookingUseCase *bookingUseCase.BookingUsecase
	logger         *slog.Logger
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(useCase *bookingUseCase.BookingUsecase, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		bookingUseCase: useCase,
		logger:         logger,
	}
}

// GetHandler retrieves a booking by id.
// GET /v1/bookings/:id
func (h *BookingHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	booking, err := h.bookingUseCase.GetBooking(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapBookingToResponse(booking))
}

// ListHandler retrieves bookings for a user.
// GET /v1/bookings?user_id=...&offset=0&limit=50
func (h *BookingHandler) ListHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid user_id: %w", err), h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	bookings, err := h.bookingUseCase.ListBookings(c.Request.Context(), userID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapBookingsToListResponse(bookings, offset, limit))
}

// CancelHandler cancels a booking. The route is wrapped by the idempotency
// middleware, so a retried cancellation with the same Idempotency-Key replays
// the stored response instead of re-running the saga.
// POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	booking, err := h.bookingUseCase.CancelBooking(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Set(idempotencyHTTP.ContextResourceID, booking.ID.String())
	c.JSON(http.StatusOK, dto.MapBookingToResponse(booking))
}

// parseID extracts and validates the :id path parameter.
func (h *BookingHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid booking id: %w", err), h.logger)
		return uuid.Nil, false
	}
	return id, true
}
