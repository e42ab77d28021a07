// Package dto provides data transfer objects for booking HTTP endpoints.
package dto

import (
	"time"

	"github.com/allisson/bookings/internal/booking/domain"
)

// BookingResponse is the public representation of a booking.
type BookingResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Status      string  `json:"status"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency"`
	PromotionID *string `json:"promotion_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// MapBookingToResponse converts a domain booking to its response form.
func MapBookingToResponse(booking *domain.Booking) BookingResponse {
	response := BookingResponse{
		ID:          booking.ID.String(),
		UserID:      booking.UserID.String(),
		Status:      string(booking.Status),
		AmountCents: booking.AmountCents,
		Currency:    booking.Currency,
		CreatedAt:   booking.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   booking.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if booking.PromotionID != nil {
		promotionID := booking.PromotionID.String()
		response.PromotionID = &promotionID
	}
	return response
}

// ListBookingsResponse wraps a page of bookings.
type ListBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Offset   int               `json:"offset"`
	Limit    int               `json:"limit"`
}

// MapBookingsToListResponse converts a page of domain bookings.
func MapBookingsToListResponse(bookings []*domain.Booking, offset, limit int) ListBookingsResponse {
	response := ListBookingsResponse{
		Bookings: make([]BookingResponse, 0, len(bookings)),
		Offset:   offset,
		Limit:    limit,
	}
	for _, booking := range bookings {
		response.Bookings = append(response.Bookings, MapBookingToResponse(booking))
	}
	return response
}
