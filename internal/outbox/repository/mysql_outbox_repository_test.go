package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/bookings/internal/outbox/domain"
	"github.com/allisson/bookings/internal/testutil"
)

func TestMySQLOutboxEventRepository_Create(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	repo := NewMySQLOutboxEventRepository(db)
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
}

func TestMySQLOutboxEventRepository_StatusTransitions(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	repo := NewMySQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, event))

	require.NoError(t, repo.MarkEnqueued(ctx, event.ID))
	assert.ErrorIs(t, repo.MarkEnqueued(ctx, event.ID), domain.ErrEventNotPending)

	require.NoError(t, repo.MarkFailed(ctx, event.ID, "handler failed"))
	require.NoError(t, repo.ResetToPending(ctx, event.ID))

	read, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxEventStatusPending, read.Status)
	assert.Equal(t, 1, read.Attempts)
	assert.Nil(t, read.LastError)

	require.NoError(t, repo.MarkEnqueued(ctx, event.ID))
	require.NoError(t, repo.MarkSent(ctx, event.ID))

	read, err = repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxEventStatusSent, read.Status)
	assert.NotNil(t, read.SentAt)
}

func TestMySQLOutboxEventRepository_CountByStatus(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	repo := NewMySQLOutboxEventRepository(db)
	ctx := context.Background()

	pending := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, pending))

	failed := newTestOutboxEvent()
	require.NoError(t, repo.Create(ctx, failed))
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "handler failed"))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Pending)
	assert.Equal(t, int64(1), counts.Failed)
	assert.Zero(t, counts.Sent)
}

func TestMySQLOutboxEventRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupMySQLDB(t, db)

	repo := NewMySQLOutboxEventRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}
