package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	databaseMocks "github.com/allisson/bookings/internal/database/mocks"
	"github.com/allisson/bookings/internal/outbox/domain"
	"github.com/allisson/bookings/internal/outbox/usecase/mocks"
	"github.com/allisson/bookings/internal/queue"
	queueMocks "github.com/allisson/bookings/internal/queue/mocks"
)

func newTestDispatcher(repo *mocks.MockOutboxEventRepository, q *queueMocks.MockQueue, txManager *databaseMocks.MockTxManager) *Dispatcher {
	config := DispatcherConfig{
		Interval:    time.Second,
		BatchSize:   50,
		MaxAttempts: 5,
	}
	return NewDispatcher(config, txManager, repo, q, nil, nil)
}

func pendingEvent() *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:      uuid.Must(uuid.NewV7()),
		Topic:   "bookings",
		Key:     "booking-1",
		Payload: `{"type":"booking.cancelled"}`,
		Status:  domain.OutboxEventStatusPending,
	}
}

// TestDispatcher_Dispatch tests the Dispatch method of Dispatcher.
func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		event := pendingEvent()

		mockRepo.On("GetByID", ctx, event.ID).Return(event, nil).Once()
		mockQueue.On("Enqueue", ctx, queue.Job{OutboxID: event.ID, Attempt: 1}).Return(nil).Once()
		mockRepo.On("MarkEnqueued", ctx, event.ID).Return(nil).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, nil)
		err := dispatcher.Dispatch(ctx, event.ID)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockQueue.AssertExpectations(t)
	})

	t.Run("Success_DedupeKeyForwardedToJob", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		event := pendingEvent()
		dedupeKey := "booking-cancelled-1"
		event.DedupeKey = &dedupeKey

		mockRepo.On("GetByID", ctx, event.ID).Return(event, nil).Once()
		mockQueue.On("Enqueue", ctx, queue.Job{OutboxID: event.ID, DedupeKey: dedupeKey, Attempt: 1}).
			Return(nil).
			Once()
		mockRepo.On("MarkEnqueued", ctx, event.ID).Return(nil).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, nil)
		err := dispatcher.Dispatch(ctx, event.ID)

		assert.NoError(t, err)
		mockQueue.AssertExpectations(t)
	})

	t.Run("Success_NonPendingEventIsSkipped", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		event := pendingEvent()
		event.Status = domain.OutboxEventStatusSent

		mockRepo.On("GetByID", ctx, event.ID).Return(event, nil).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, nil)
		err := dispatcher.Dispatch(ctx, event.ID)

		assert.NoError(t, err)
		mockQueue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("Error_EnqueueFailureMarksEventFailed", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		event := pendingEvent()
		queueErr := errors.New("broker unreachable")

		mockRepo.On("GetByID", ctx, event.ID).Return(event, nil).Once()
		mockQueue.On("Enqueue", ctx, mock.AnythingOfType("queue.Job")).Return(queueErr).Once()
		mockRepo.On("MarkFailed", ctx, event.ID, queueErr.Error()).Return(nil).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, nil)
		err := dispatcher.Dispatch(ctx, event.ID)

		assert.ErrorIs(t, err, queueErr)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Success_ConcurrentDispatcherWonStatusRace", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		event := pendingEvent()

		mockRepo.On("GetByID", ctx, event.ID).Return(event, nil).Once()
		mockQueue.On("Enqueue", ctx, mock.AnythingOfType("queue.Job")).Return(nil).Once()
		mockRepo.On("MarkEnqueued", ctx, event.ID).Return(domain.ErrEventNotPending).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, nil)
		err := dispatcher.Dispatch(ctx, event.ID)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})
}

// TestDispatcher_DispatchAll tests the DispatchAll method of Dispatcher.
func TestDispatcher_DispatchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		mockTxManager := new(databaseMocks.MockTxManager)
		first := pendingEvent()
		second := pendingEvent()

		mockTxManager.On("WithTx", ctx, mock.AnythingOfType("func(context.Context) error")).
			Return(nil).
			Once()
		mockRepo.On("GetPendingEvents", ctx, 50).
			Return([]*domain.OutboxEvent{first, second}, nil).
			Once()
		mockQueue.On("Enqueue", ctx, mock.AnythingOfType("queue.Job")).Return(nil).Twice()
		mockRepo.On("MarkEnqueued", ctx, first.ID).Return(nil).Once()
		mockRepo.On("MarkEnqueued", ctx, second.ID).Return(nil).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, mockTxManager)
		dispatched, err := dispatcher.DispatchAll(ctx, 0)

		assert.NoError(t, err)
		assert.Equal(t, 2, dispatched)
		mockRepo.AssertExpectations(t)
		mockQueue.AssertExpectations(t)
	})

	t.Run("Success_OneBadEventDoesNotBlockTheBatch", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		mockTxManager := new(databaseMocks.MockTxManager)
		bad := pendingEvent()
		good := pendingEvent()
		queueErr := errors.New("broker unreachable")

		mockTxManager.On("WithTx", ctx, mock.AnythingOfType("func(context.Context) error")).
			Return(nil).
			Once()
		mockRepo.On("GetPendingEvents", ctx, 10).
			Return([]*domain.OutboxEvent{bad, good}, nil).
			Once()
		mockQueue.On("Enqueue", ctx, queue.Job{OutboxID: bad.ID, Attempt: 1}).Return(queueErr).Once()
		mockRepo.On("MarkFailed", ctx, bad.ID, queueErr.Error()).Return(nil).Once()
		mockQueue.On("Enqueue", ctx, queue.Job{OutboxID: good.ID, Attempt: 1}).Return(nil).Once()
		mockRepo.On("MarkEnqueued", ctx, good.ID).Return(nil).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, mockTxManager)
		dispatched, err := dispatcher.DispatchAll(ctx, 10)

		assert.ErrorIs(t, err, queueErr)
		assert.Equal(t, 1, dispatched)
		mockRepo.AssertExpectations(t)
		mockQueue.AssertExpectations(t)
	})

	t.Run("Error_SelectFailure", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		mockTxManager := new(databaseMocks.MockTxManager)
		selectErr := errors.New("select failed")

		mockTxManager.On("WithTx", ctx, mock.AnythingOfType("func(context.Context) error")).
			Return(nil).
			Once()
		mockRepo.On("GetPendingEvents", ctx, 50).Return(nil, selectErr).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, mockTxManager)
		dispatched, err := dispatcher.DispatchAll(ctx, 0)

		assert.ErrorIs(t, err, selectErr)
		assert.Zero(t, dispatched)
	})
}

// TestDispatcher_RetryDeadLetters tests the RetryDeadLetters method of Dispatcher.
func TestDispatcher_RetryDeadLetters(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		mockTxManager := new(databaseMocks.MockTxManager)

		failed := pendingEvent()
		failed.Status = domain.OutboxEventStatusFailed
		failed.Attempts = 2
		lastError := "handler failed"
		failed.LastError = &lastError

		mockTxManager.On("WithTx", ctx, mock.AnythingOfType("func(context.Context) error")).
			Return(nil).
			Once()
		mockRepo.On("GetFailedEvents", ctx, 5, 50).
			Return([]*domain.OutboxEvent{failed}, nil).
			Once()
		mockRepo.On("ResetToPending", ctx, failed.ID).Return(nil).Once()
		mockQueue.On("Enqueue", ctx, queue.Job{OutboxID: failed.ID, Attempt: 3}).Return(nil).Once()
		mockRepo.On("MarkEnqueued", ctx, failed.ID).Return(nil).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, mockTxManager)
		retried, err := dispatcher.RetryDeadLetters(ctx, 0)

		assert.NoError(t, err)
		assert.Equal(t, 1, retried)
		mockRepo.AssertExpectations(t)
		mockQueue.AssertExpectations(t)
	})

	t.Run("Error_ResetFailureSkipsEvent", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		mockQueue := new(queueMocks.MockQueue)
		mockTxManager := new(databaseMocks.MockTxManager)

		failed := pendingEvent()
		failed.Status = domain.OutboxEventStatusFailed
		resetErr := errors.New("reset failed")

		mockTxManager.On("WithTx", ctx, mock.AnythingOfType("func(context.Context) error")).
			Return(nil).
			Once()
		mockRepo.On("GetFailedEvents", ctx, 3, 50).
			Return([]*domain.OutboxEvent{failed}, nil).
			Once()
		mockRepo.On("ResetToPending", ctx, failed.ID).Return(resetErr).Once()

		dispatcher := newTestDispatcher(mockRepo, mockQueue, mockTxManager)
		retried, err := dispatcher.RetryDeadLetters(ctx, 3)

		assert.ErrorIs(t, err, resetErr)
		assert.Zero(t, retried)
		mockQueue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})
}

// TestDispatcher_Stats tests the Stats method of Dispatcher.
func TestDispatcher_Stats(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(mocks.MockOutboxEventRepository)

	counts := &domain.StatusCounts{Pending: 4, Enqueued: 2, Sent: 10, Failed: 1}
	mockRepo.On("CountByStatus", ctx).Return(counts, nil).Once()

	dispatcher := newTestDispatcher(mockRepo, nil, nil)
	stats, err := dispatcher.Stats(ctx)

	assert.NoError(t, err)
	assert.Equal(t, counts, stats)
}

// TestDispatcher_CleanupSent tests the CleanupSent method of Dispatcher.
func TestDispatcher_CleanupSent(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)

		mockRepo.On("DeleteSentOlderThan", ctx, mock.AnythingOfType("time.Time")).
			Run(func(args mock.Arguments) {
				cutoff := args.Get(1).(time.Time)
				assert.WithinDuration(t, time.Now().Add(-24*time.Hour), cutoff, time.Minute)
			}).
			Return(int64(7), nil).
			Once()

		dispatcher := newTestDispatcher(mockRepo, nil, nil)
		count, err := dispatcher.CleanupSent(ctx, 24*time.Hour)

		assert.NoError(t, err)
		assert.Equal(t, int64(7), count)
	})

	t.Run("Error", func(t *testing.T) {
		mockRepo := new(mocks.MockOutboxEventRepository)
		deleteErr := errors.New("delete failed")

		mockRepo.On("DeleteSentOlderThan", ctx, mock.AnythingOfType("time.Time")).
			Return(int64(0), deleteErr).
			Once()

		dispatcher := newTestDispatcher(mockRepo, nil, nil)
		count, err := dispatcher.CleanupSent(ctx, time.Hour)

		assert.ErrorIs(t, err, deleteErr)
		assert.Zero(t, count)
	})
}
