// Package mocks provides mock implementations for testing booking use cases.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/bookings/internal/booking/domain"

	outboxUseCase "github.com/allisson/bookings/internal/outbox/usecase"
)

// MockBookingRepository is a mock implementation of BookingRepository for testing.
type MockBookingRepository struct {
	mock.Mock
}

// Create mocks the Create method of BookingRepository.
func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

// GetByID mocks the GetByID method of BookingRepository.
func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

// MarkCancelled mocks the MarkCancelled method of BookingRepository.
func (m *MockBookingRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// SetStatus mocks the SetStatus method of BookingRepository.
func (m *MockBookingRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// ListByUser mocks the ListByUser method of BookingRepository.
func (m *MockBookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*domain.Booking, error) {
	args := m.Called(ctx, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Booking), args.Error(1)
}

// MockPromotionRedeemer is a mock implementation of PromotionRedeemer for testing.
type MockPromotionRedeemer struct {
	mock.Mock
}

// Consume mocks the Consume method of PromotionRedeemer.
func (m *MockPromotionRedeemer) Consume(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Release mocks the Release method of PromotionRedeemer.
func (m *MockPromotionRedeemer) Release(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPaymentRefunder is a mock implementation of PaymentRefunder for testing.
type MockPaymentRefunder struct {
	mock.Mock
}

// RefundForBooking mocks the RefundForBooking method of PaymentRefunder.
func (m *MockPaymentRefunder) RefundForBooking(ctx context.Context, bookingID uuid.UUID) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

// MockEventEmitter is a mock implementation of EventEmitter for testing.
type MockEventEmitter struct {
	mock.Mock
}

// EmitInTx mocks the EmitInTx method of EventEmitter.
func (m *MockEventEmitter) EmitInTx(ctx context.Context, input outboxUseCase.EmitInput) outboxUseCase.EmitResult {
	args := m.Called(ctx, input)
	return args.Get(0).(outboxUseCase.EmitResult)
}
