// Package mocks provides mock implementations for testing idempotency use cases.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/bookings/internal/idempotency/domain"
)

// MockIdempotencyRepository is a mock implementation of IdempotencyRepository for testing.
type MockIdempotencyRepository struct {
	mock.Mock
}

// Insert mocks the Insert method of IdempotencyRepository.
func (m *MockIdempotencyRepository) Insert(ctx context.Context, record *domain.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// GetByNaturalKey mocks the GetByNaturalKey method of IdempotencyRepository.
func (m *MockIdempotencyRepository) GetByNaturalKey(ctx context.Context, callerID, endpoint, key string) (*domain.Record, error) {
	args := m.Called(ctx, callerID, endpoint, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

// Complete mocks the Complete method of IdempotencyRepository.
func (m *MockIdempotencyRepository) Complete(
	ctx context.Context,
	id uuid.UUID,
	status domain.RecordStatus,
	response *string,
	responseCode *int,
	resourceID *string,
	lastError *string,
) error {
	args := m.Called(ctx, id, status, response, responseCode, resourceID, lastError)
	return args.Error(0)
}

// Delete mocks the Delete method of IdempotencyRepository.
func (m *MockIdempotencyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// DeleteExpired mocks the DeleteExpired method of IdempotencyRepository.
func (m *MockIdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
