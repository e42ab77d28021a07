// Package usecase implements the payment business logic.
package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/payment/domain"
	"github.com/allisson/bookings/internal/payment/service"
)

// PaymentRepository defines payment repository operations
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, providerRef string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
}

// PaymentUsecase implements refunds against the provider gateway.
type PaymentUsecase struct {
	paymentRepo PaymentRepository
	gateway     service.Gateway
	logger      *slog.Logger
}

// NewPaymentUsecase creates a new PaymentUsecase.
func NewPaymentUsecase(paymentRepo PaymentRepository, gateway service.Gateway, logger *slog.Logger) *PaymentUsecase {
	return &PaymentUsecase{
		paymentRepo: paymentRepo,
		gateway:     gateway,
		logger:      logger,
	}
}

// GetByBookingID returns the payment attached to a booking.
func (u *PaymentUsecase) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	return u.paymentRepo.GetByBookingID(ctx, bookingID)
}

// RefundForBooking refunds the booking's captured payment. Already-refunded
// payments are treated as success so retried cancellations converge instead
// of failing. The provider call carries a deterministic reference derived
// from the payment id, so a crash between the provider call and the status
// update cannot double-refund.
func (u *PaymentUsecase) RefundForBooking(ctx context.Context, bookingID uuid.UUID) error {
	payment, err := u.paymentRepo.GetByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			// Bookings without a payment have nothing to refund.
			return nil
		}
		return err
	}

	if payment.Status == domain.PaymentStatusRefunded {
		return nil
	}
	if !payment.Refundable() {
		return domain.ErrPaymentNotRefundable
	}

	providerRef := ""
	if payment.ProviderRef != nil {
		providerRef = *payment.ProviderRef
	}

	result, err := u.gateway.Refund(ctx, service.RefundRequest{
		PaymentID:   payment.ID,
		ProviderRef: providerRef,
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Reference:   payment.ID.String(),
	})
	if err != nil {
		return err
	}

	if err := u.paymentRepo.MarkRefunded(ctx, payment.ID, result.ProviderRef); err != nil {
		if errors.Is(err, domain.ErrPaymentNotRefundable) {
			// A concurrent refund won the status transition.
			return nil
		}
		return err
	}

	if u.logger != nil {
		u.logger.Info("payment refunded",
			slog.String("payment_id", payment.ID.String()),
			slog.String("booking_id", bookingID.String()),
			slog.Int64("amount_cents", payment.AmountCents),
		)
	}
	return nil
}
