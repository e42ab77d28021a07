// Package mocks provides mock implementations for testing queue consumers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/bookings/internal/queue"
)

// MockQueue is a mock implementation of Queue for testing.
type MockQueue struct {
	mock.Mock
}

// Enqueue mocks the Enqueue method of Queue.
func (m *MockQueue) Enqueue(ctx context.Context, job queue.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockConsumer is a mock implementation of Consumer for testing.
type MockConsumer struct {
	mock.Mock
}

// Consume mocks the Consume method of Consumer.
func (m *MockConsumer) Consume(ctx context.Context, handler queue.Handler) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}
