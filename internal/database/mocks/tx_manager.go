// Package mocks provides mock implementations for testing transactional code.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTxManager is a mock implementation of TxManager for testing. WithTx runs
// the given function with the unchanged context, so repositories observe no
// transaction and tests exercise the non-nested path.
type MockTxManager struct {
	mock.Mock
}

// WithTx mocks the WithTx method of TxManager. Unless an expectation overrides
// the return value, the function result is propagated like the real manager
// propagates a rollback cause.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}
