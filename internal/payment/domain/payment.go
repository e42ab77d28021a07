// Package domain defines the core payment domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/errors"
)

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	// PaymentStatusPending marks a payment created but not yet captured.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCaptured marks funds taken from the customer.
	PaymentStatusCaptured PaymentStatus = "captured"
	// PaymentStatusRefunded marks a captured payment returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusFailed marks a payment the provider rejected.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment represents money movement for a booking. AmountCents avoids
// floating-point money arithmetic.
type Payment struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	AmountCents int64
	Currency    string
	Status      PaymentStatus
	ProviderRef *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Refundable reports whether the payment holds funds that can be returned.
func (p *Payment) Refundable() bool {
	return p.Status == PaymentStatusCaptured
}

// Domain-specific errors for payment operations.
var (
	// ErrPaymentNotFound indicates the requested payment does not exist.
	ErrPaymentNotFound = errors.Wrap(errors.ErrNotFound, "payment not found")

	// ErrPaymentNotRefundable indicates a refund was attempted on a payment
	// that is not in captured status.
	ErrPaymentNotRefundable = errors.Wrap(errors.ErrConflict, "payment is not refundable")
)
