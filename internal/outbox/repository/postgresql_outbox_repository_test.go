package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/outbox/domain"
	"github.com/allisson/bookings/internal/testutil"
)

func newTestOutboxEvent() *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:      uuid.Must(uuid.NewV7()),
		Topic:   "bookings",
		Key:     "booking-1",
		Payload: `{"type":"booking.cancelled"}`,
		Status:  domain.OutboxEventStatusPending,
	}
}

func TestNewPostgreSQLOutboxEventRepository(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	assert.NotNil(t, repo)
	assert.IsType(t, &PostgreSQLOutboxEventRepository{}, repo)
}

func TestPostgreSQLOutboxEventRepository_Create(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	dedupeKey := "booking-cancelled-1"
	event.DedupeKey = &dedupeKey

	err := repo.Create(ctx, event)
	require.NoError(t, err)

	read, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)

	assert.Equal(t, event.ID, read.ID)
	assert.Equal(t, event.Topic, read.Topic)
	assert.Equal(t, event.Key, read.Key)
	assert.Equal(t, event.Payload, read.Payload)
	require.NotNil(t, read.DedupeKey)
	assert.Equal(t, dedupeKey, *read.DedupeKey)
	assert.Equal(t, domain.OutboxEventStatusPending, read.Status)
	assert.Zero(t, read.Attempts)
	assert.Nil(t, read.LastError)
	assert.Nil(t, read.EnqueuedAt)
	assert.Nil(t, read.SentAt)
	assert.WithinDuration(t, time.Now(), read.CreatedAt, time.Minute)
}

func TestPostgreSQLOutboxEventRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestPostgreSQLOutboxEventRepository_GetPendingEvents(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	// Oldest first ordering depends on created_at, so space the inserts out.
	first := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, first))
	time.Sleep(10 * time.Millisecond)

	second := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, second))

	sent := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, sent))
	require.NoError(t, repo.MarkEnqueued(ctx, sent.ID))
	require.NoError(t, repo.MarkSent(ctx, sent.ID))

	events, err := repo.GetPendingEvents(ctx, 10)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
}

func TestPostgreSQLOutboxEventRepository_GetPendingEvents_RespectsLimit(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newTestOutboxEvent()))
	}

	events, err := repo.GetPendingEvents(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestPostgreSQLOutboxEventRepository_MarkEnqueued(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, event))

	err := repo.MarkEnqueued(ctx, event.ID)
	require.NoError(t, err)

	read, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxEventStatusEnqueued, read.Status)
	assert.Equal(t, 1, read.Attempts)
	assert.NotNil(t, read.EnqueuedAt)

	// A second transition attempt hits the status guard.
	err = repo.MarkEnqueued(ctx, event.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotPending)

	read, err = repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, read.Attempts)
}

func TestPostgreSQLOutboxEventRepository_MarkSent(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, event))
	require.NoError(t, repo.MarkEnqueued(ctx, event.ID))
	require.NoError(t, repo.MarkFailed(ctx, event.ID, "handler failed"))

	err := repo.MarkSent(ctx, event.ID)
	require.NoError(t, err)

	read, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxEventStatusSent, read.Status)
	assert.NotNil(t, read.SentAt)
	assert.Nil(t, read.LastError)

	// Marking an already-sent event is a no-op, not an error.
	assert.NoError(t, repo.MarkSent(ctx, event.ID))
}

func TestPostgreSQLOutboxEventRepository_MarkFailed(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, event))

	err := repo.MarkFailed(ctx, event.ID, "broker unreachable")
	require.NoError(t, err)

	read, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxEventStatusFailed, read.Status)
	require.NotNil(t, read.LastError)
	assert.Equal(t, "broker unreachable", *read.LastError)
}

func TestPostgreSQLOutboxEventRepository_MarkFailed_NeverMovesSentBack(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, event))
	require.NoError(t, repo.MarkEnqueued(ctx, event.ID))
	require.NoError(t, repo.MarkSent(ctx, event.ID))

	require.NoError(t, repo.MarkFailed(ctx, event.ID, "late failure"))

	read, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxEventStatusSent, read.Status)
}

func TestPostgreSQLOutboxEventRepository_ResetToPending(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, event))

	// Only failed events can be reset.
	err := repo.ResetToPending(ctx, event.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotFailed)

	require.NoError(t, repo.MarkFailed(ctx, event.ID, "broker unreachable"))
	require.NoError(t, repo.ResetToPending(ctx, event.ID))

	read, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxEventStatusPending, read.Status)
	assert.Nil(t, read.LastError)
}

func TestPostgreSQLOutboxEventRepository_GetFailedEvents(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	// Failed with one attempt, below the ceiling.
	retryable := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, retryable))
	require.NoError(t, repo.MarkEnqueued(ctx, retryable.ID))
	require.NoError(t, repo.MarkFailed(ctx, retryable.ID, "handler failed"))

	// Failed with attempts at the ceiling, left for manual inspection.
	exhausted := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, exhausted))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkEnqueued(ctx, exhausted.ID))
		require.NoError(t, repo.MarkFailed(ctx, exhausted.ID, "handler failed"))
		if i < 2 {
			require.NoError(t, repo.ResetToPending(ctx, exhausted.ID))
		}
	}

	events, err := repo.GetFailedEvents(ctx, 3, 10)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, retryable.ID, events[0].ID)
}

func TestPostgreSQLOutboxEventRepository_List(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	pending := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, pending))

	other := newTestOutboxEvent()
	other.Topic = "payments"
	require.NoError(t, repo.Create(ctx, other))

	failed := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, failed))
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "handler failed"))

	all, err := repo.List(ctx, domain.ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failedOnly, err := repo.List(ctx, domain.ListFilter{Status: "failed", Limit: 10})
	require.NoError(t, err)
	require.Len(t, failedOnly, 1)
	assert.Equal(t, failed.ID, failedOnly[0].ID)

	paymentsOnly, err := repo.List(ctx, domain.ListFilter{Topic: "payments", Limit: 10})
	require.NoError(t, err)
	require.Len(t, paymentsOnly, 1)
	assert.Equal(t, other.ID, paymentsOnly[0].ID)

	paged, err := repo.List(ctx, domain.ListFilter{Offset: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestPostgreSQLOutboxEventRepository_Delete(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, event))

	require.NoError(t, repo.Delete(ctx, event.ID))

	_, err := repo.GetByID(ctx, event.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	err = repo.Delete(ctx, event.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestPostgreSQLOutboxEventRepository_DeleteSentOlderThan(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	sent := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, sent))
	require.NoError(t, repo.MarkEnqueued(ctx, sent.ID))
	require.NoError(t, repo.MarkSent(ctx, sent.ID))

	pending := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, pending))

	// A cutoff in the future covers the just-sent event; pending rows are
	// always retained.
	count, err := repo.DeleteSentOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = repo.GetByID(ctx, sent.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	_, err = repo.GetByID(ctx, pending.ID)
	assert.NoError(t, err)
}

func TestPostgreSQLOutboxEventRepository_CountByStatus(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	pending := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, pending))

	enqueued := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, enqueued))
	require.NoError(t, repo.MarkEnqueued(ctx, enqueued.ID))

	sent := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, sent))
	require.NoError(t, repo.MarkEnqueued(ctx, sent.ID))
	require.NoError(t, repo.MarkSent(ctx, sent.ID))

	failed := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, failed))
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "handler failed"))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), counts.Pending)
	assert.Equal(t, int64(1), counts.Enqueued)
	assert.Equal(t, int64(1), counts.Sent)
	assert.Equal(t, int64(1), counts.Failed)
}

func TestPostgreSQLOutboxEventRepository_Create_TransactionRollback(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	txManager := database.NewTxManager(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	err := txManager.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, event))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	// The event rides the business transaction: a rollback leaves no row.
	_, err = repo.GetByID(ctx, event.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestPostgreSQLOutboxEventRepository_Create_TransactionCommit(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	txManager := database.NewTxManager(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	err := txManager.WithTx(ctx, func(ctx context.Context) error {
		return repo.Create(ctx, event)
	})
	require.NoError(t, err)

	read, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxEventStatusPending, read.Status)
}
