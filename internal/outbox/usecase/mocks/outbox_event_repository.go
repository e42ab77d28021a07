// Package mocks provides mock implementations for testing outbox use cases.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/bookings/internal/outbox/domain"
)

// MockOutboxEventRepository is a mock implementation of OutboxEventRepository for testing.
type MockOutboxEventRepository struct {
	mock.Mock
}

// Create mocks the Create method of OutboxEventRepository.
func (m *MockOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// GetByID mocks the GetByID method of OutboxEventRepository.
func (m *MockOutboxEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

// GetPendingEvents mocks the GetPendingEvents method of OutboxEventRepository.
func (m *MockOutboxEventRepository) GetPendingEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

// GetFailedEvents mocks the GetFailedEvents method of OutboxEventRepository.
func (m *MockOutboxEventRepository) GetFailedEvents(ctx context.Context, maxAttempts int, limit int) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, maxAttempts, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

// MarkEnqueued mocks the MarkEnqueued method of OutboxEventRepository.
func (m *MockOutboxEventRepository) MarkEnqueued(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MarkSent mocks the MarkSent method of OutboxEventRepository.
func (m *MockOutboxEventRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MarkFailed mocks the MarkFailed method of OutboxEventRepository.
func (m *MockOutboxEventRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

// ResetToPending mocks the ResetToPending method of OutboxEventRepository.
func (m *MockOutboxEventRepository) ResetToPending(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// List mocks the List method of OutboxEventRepository.
func (m *MockOutboxEventRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

// Delete mocks the Delete method of OutboxEventRepository.
func (m *MockOutboxEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// DeleteSentOlderThan mocks the DeleteSentOlderThan method of OutboxEventRepository.
func (m *MockOutboxEventRepository) DeleteSentOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// CountByStatus mocks the CountByStatus method of OutboxEventRepository.
func (m *MockOutboxEventRepository) CountByStatus(ctx context.Context) (*domain.StatusCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusCounts), args.Error(1)
}
