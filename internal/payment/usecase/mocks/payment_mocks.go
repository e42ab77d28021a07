// Package mocks provides mock implementations for testing payment use cases.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/bookings/internal/payment/domain"
	"github.com/allisson/bookings/internal/payment/service"
)

// MockPaymentRepository is a mock implementation of PaymentRepository for testing.
type MockPaymentRepository struct {
	mock.Mock
}

// Create mocks the Create method of PaymentRepository.
func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

// GetByID mocks the GetByID method of PaymentRepository.
func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

// GetByBookingID mocks the GetByBookingID method of PaymentRepository.
func (m *MockPaymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

// MarkRefunded mocks the MarkRefunded method of PaymentRepository.
func (m *MockPaymentRepository) MarkRefunded(ctx context.Context, id uuid.UUID, providerRef string) error {
	args := m.Called(ctx, id, providerRef)
	return args.Error(0)
}

// UpdateStatus mocks the UpdateStatus method of PaymentRepository.
func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// MockGateway is a mock implementation of Gateway for testing.
type MockGateway struct {
	mock.Mock
}

// Refund mocks the Refund method of Gateway.
func (m *MockGateway) Refund(ctx context.Context, req service.RefundRequest) (*service.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RefundResult), args.Error(1)
}
