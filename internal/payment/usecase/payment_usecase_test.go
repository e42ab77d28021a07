package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/bookings/internal/payment/domain"
	"github.com/allisson/bookings/internal/payment/service"
	"github.com/allisson/bookings/internal/payment/usecase/mocks"
)

func capturedPayment(bookingID uuid.UUID) *domain.Payment {
	return &domain.Payment{
		ID:          uuid.Must(uuid.NewV7()),
		BookingID:   bookingID,
		AmountCents: 15000,
		Currency:    "USD",
		Status:      domain.PaymentStatusCaptured,
	}
}

// TestPaymentUsecase_RefundForBooking tests the RefundForBooking method of PaymentUsecase.
func TestPaymentUsecase_RefundForBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(mocks.MockPaymentRepository)
		mockGateway := new(mocks.MockGateway)
		bookingID := uuid.Must(uuid.NewV7())
		payment := capturedPayment(bookingID)

		mockRepo.On("GetByBookingID", ctx, bookingID).Return(payment, nil).Once()
		mockGateway.On("Refund", ctx, service.RefundRequest{
			PaymentID:   payment.ID,
			AmountCents: payment.AmountCents,
			Currency:    payment.Currency,
			Reference:   payment.ID.String(),
		}).Return(&service.RefundResult{ProviderRef: "refund-" + payment.ID.String()}, nil).Once()
		mockRepo.On("MarkRefunded", ctx, payment.ID, "refund-"+payment.ID.String()).Return(nil).Once()

		uc := NewPaymentUsecase(mockRepo, mockGateway, nil)
		err := uc.RefundForBooking(ctx, bookingID)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockGateway.AssertExpectations(t)
	})

	t.Run("Success_NoPaymentMeansNothingToRefund", func(t *testing.T) {
		mockRepo := new(mocks.MockPaymentRepository)
		mockGateway := new(mocks.MockGateway)
		bookingID := uuid.Must(uuid.NewV7())

		mockRepo.On("GetByBookingID", ctx, bookingID).Return(nil, domain.ErrPaymentNotFound).Once()

		uc := NewPaymentUsecase(mockRepo, mockGateway, nil)
		err := uc.RefundForBooking(ctx, bookingID)

		assert.NoError(t, err)
		mockGateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	})

	t.Run("Success_AlreadyRefundedConverges", func(t *testing.T) {
		mockRepo := new(mocks.MockPaymentRepository)
		mockGateway := new(mocks.MockGateway)
		bookingID := uuid.Must(uuid.NewV7())
		payment := capturedPayment(bookingID)
		payment.Status = domain.PaymentStatusRefunded

		mockRepo.On("GetByBookingID", ctx, bookingID).Return(payment, nil).Once()

		uc := NewPaymentUsecase(mockRepo, mockGateway, nil)
		err := uc.RefundForBooking(ctx, bookingID)

		assert.NoError(t, err)
		mockGateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	})

	t.Run("Error_PendingPaymentIsNotRefundable", func(t *testing.T) {
		mockRepo := new(mocks.MockPaymentRepository)
		mockGateway := new(mocks.MockGateway)
		bookingID := uuid.Must(uuid.NewV7())
		payment := capturedPayment(bookingID)
		payment.Status = domain.PaymentStatusPending

		mockRepo.On("GetByBookingID", ctx, bookingID).Return(payment, nil).Once()

		uc := NewPaymentUsecase(mockRepo, mockGateway, nil)
		err := uc.RefundForBooking(ctx, bookingID)

		assert.ErrorIs(t, err, domain.ErrPaymentNotRefundable)
		mockGateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	})

	t.Run("Error_GatewayFailurePropagates", func(t *testing.T) {
		mockRepo := new(mocks.MockPaymentRepository)
		mockGateway := new(mocks.MockGateway)
		bookingID := uuid.Must(uuid.NewV7())
		payment := capturedPayment(bookingID)
		gatewayErr := errors.New("provider timeout")

		mockRepo.On("GetByBookingID", ctx, bookingID).Return(payment, nil).Once()
		mockGateway.On("Refund", ctx, mock.AnythingOfType("service.RefundRequest")).
			Return(nil, gatewayErr).
			Once()

		uc := NewPaymentUsecase(mockRepo, mockGateway, nil)
		err := uc.RefundForBooking(ctx, bookingID)

		assert.ErrorIs(t, err, gatewayErr)
		mockRepo.AssertNotCalled(t, "MarkRefunded", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Success_ConcurrentRefundWonStatusTransition", func(t *testing.T) {
		mockRepo := new(mocks.MockPaymentRepository)
		mockGateway := new(mocks.MockGateway)
		bookingID := uuid.Must(uuid.NewV7())
		payment := capturedPayment(bookingID)

		mockRepo.On("GetByBookingID", ctx, bookingID).Return(payment, nil).Once()
		mockGateway.On("Refund", ctx, mock.AnythingOfType("service.RefundRequest")).
			Return(&service.RefundResult{ProviderRef: "refund-ref"}, nil).
			Once()
		mockRepo.On("MarkRefunded", ctx, payment.ID, "refund-ref").
			Return(domain.ErrPaymentNotRefundable).
			Once()

		uc := NewPaymentUsecase(mockRepo, mockGateway, nil)
		err := uc.RefundForBooking(ctx, bookingID)

		assert.NoError(t, err)
	})
}

// TestLoggingGateway_Refund tests the stand-in provider.
func TestLoggingGateway_Refund(t *testing.T) {
	gateway := service.NewLoggingGateway(nil)

	result, err := gateway.Refund(context.Background(), service.RefundRequest{
		PaymentID: uuid.Must(uuid.NewV7()),
		Reference: "payment-1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "refund-payment-1", result.ProviderRef)
}
