// Package domain defines the core booking domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/errors"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	// BookingStatusConfirmed marks a paid, active booking.
	BookingStatusConfirmed BookingStatus = "confirmed"
	// BookingStatusCancelled marks a booking the customer cancelled.
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking represents a customer reservation. PromotionID is set when the
// booking redeemed a limited-use promotion code.
type Booking struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Status      BookingStatus
	AmountCents int64
	Currency    string
	PromotionID *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Cancellable reports whether the booking can enter cancellation.
func (b *Booking) Cancellable() bool {
	return b.Status == BookingStatusConfirmed
}

// CancelledEvent is the payload of the booking.cancelled outbox event. Type
// is the handler-registry discriminator.
type CancelledEvent struct {
	Type        string    `json:"type"`
	BookingID   uuid.UUID `json:"booking_id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// EventTypeBookingCancelled routes cancellation events to their handlers.
const EventTypeBookingCancelled = "booking.cancelled"

// Domain-specific errors for booking operations.
var (
	// ErrBookingNotFound indicates the requested booking does not exist.
	ErrBookingNotFound = errors.Wrap(errors.ErrNotFound, "booking not found")

	// ErrBookingNotCancellable indicates a cancellation was attempted on a
	// booking that is not confirmed.
	ErrBookingNotCancellable = errors.Wrap(errors.ErrConflict, "booking is not cancellable")
)
