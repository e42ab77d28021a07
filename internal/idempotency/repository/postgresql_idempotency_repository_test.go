package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/bookings/internal/idempotency/domain"
	"github.com/allisson/bookings/internal/testutil"
)

func newPostgresRecord(key string) *domain.Record {
	return &domain.Record{
		ID:          uuid.Must(uuid.NewV7()),
		CallerID:    "client-1",
		Endpoint:    "POST /v1/bookings/:id/cancel",
		Key:         key,
		PayloadHash: "a1b2c3",
		Status:      domain.RecordStatusInProgress,
		ExpiresAt:   time.Now().Add(time.Hour).UTC(),
	}
}

func TestNewPostgreSQLIdempotencyRepository(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLIdempotencyRepository(db)
	assert.NotNil(t, repo)
	assert.IsType(t, &PostgreSQLIdempotencyRepository{}, repo)
}

func TestPostgreSQLIdempotencyRepository_Insert(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLIdempotencyRepository(db)
	ctx := context.Background()

	record := newPostgresRecord("key-1")
	err := repo.Insert(ctx, record)
	require.NoError(t, err)

	read, err := repo.GetByNaturalKey(ctx, record.CallerID, record.Endpoint, record.Key)
	require.NoError(t, err)

	assert.Equal(t, record.ID, read.ID)
	assert.Equal(t, record.CallerID, read.CallerID)
	assert.Equal(t, record.Endpoint, read.Endpoint)
	assert.Equal(t, record.Key, read.Key)
	assert.Equal(t, record.PayloadHash, read.PayloadHash)
	assert.Equal(t, domain.RecordStatusInProgress, read.Status)
	assert.Nil(t, read.Response)
	assert.Nil(t, read.ResponseCode)
	assert.WithinDuration(t, record.ExpiresAt, read.ExpiresAt, time.Second)
}

func TestPostgreSQLIdempotencyRepository_Insert_DuplicateNaturalKey(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLIdempotencyRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newPostgresRecord("key-1")))

	err := repo.Insert(ctx, newPostgresRecord("key-1"))
	assert.ErrorIs(t, err, domain.ErrRecordExists)

	// A different key under the same caller and endpoint is fine.
	assert.NoError(t, repo.Insert(ctx, newPostgresRecord("key-2")))
}

func TestPostgreSQLIdempotencyRepository_GetByNaturalKey_NotFound(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLIdempotencyRepository(db)

	_, err := repo.GetByNaturalKey(context.Background(), "client-1", "POST /v1/bookings/:id/cancel", "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestPostgreSQLIdempotencyRepository_Complete(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLIdempotencyRepository(db)
	ctx := context.Background()

	record := newPostgresRecord("key-1")
	require.NoError(t, repo.Insert(ctx, record))

	response := `{"id":"booking-1","status":"cancelled"}`
	responseCode := 200
	resourceID := "booking-1"
	err := repo.Complete(ctx, record.ID, domain.RecordStatusCompleted, &response, &responseCode, &resourceID, nil)
	require.NoError(t, err)

	read, err := repo.GetByNaturalKey(ctx, record.CallerID, record.Endpoint, record.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusCompleted, read.Status)
	require.NotNil(t, read.Response)
	assert.Equal(t, response, *read.Response)
	require.NotNil(t, read.ResponseCode)
	assert.Equal(t, responseCode, *read.ResponseCode)
	require.NotNil(t, read.ResourceID)
	assert.Equal(t, resourceID, *read.ResourceID)

	// Finalizing twice hits the status guard.
	err = repo.Complete(ctx, record.ID, domain.RecordStatusCompleted, &response, &responseCode, nil, nil)
	assert.ErrorIs(t, err, domain.ErrRecordNotInProgress)
}

func TestPostgreSQLIdempotencyRepository_Complete_Failed(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLIdempotencyRepository(db)
	ctx := context.Background()

	record := newPostgresRecord("key-1")
	require.NoError(t, repo.Insert(ctx, record))

	responseCode := 500
	lastError := "payment provider unavailable"
	err := repo.Complete(ctx, record.ID, domain.RecordStatusFailed, nil, &responseCode, nil, &lastError)
	require.NoError(t, err)

	read, err := repo.GetByNaturalKey(ctx, record.CallerID, record.Endpoint, record.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusFailed, read.Status)
	assert.Nil(t, read.Response)
	require.NotNil(t, read.LastError)
	assert.Equal(t, lastError, *read.LastError)
}

func TestPostgreSQLIdempotencyRepository_Delete(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLIdempotencyRepository(db)
	ctx := context.Background()

	record := newPostgresRecord("key-1")
	require.NoError(t, repo.Insert(ctx, record))
	require.NoError(t, repo.Delete(ctx, record.ID))

	_, err := repo.GetByNaturalKey(ctx, record.CallerID, record.Endpoint, record.Key)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	// The key is free again after the delete.
	assert.NoError(t, repo.Insert(ctx, newPostgresRecord("key-1")))
}

func TestPostgreSQLIdempotencyRepository_DeleteExpired(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLIdempotencyRepository(db)
	ctx := context.Background()

	expired := newPostgresRecord("key-expired")
	expired.ExpiresAt = time.Now().Add(-time.Minute).UTC()
	require.NoError(t, repo.Insert(ctx, expired))

	live := newPostgresRecord("key-live")
	require.NoError(t, repo.Insert(ctx, live))

	deleted, err := repo.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByNaturalKey(ctx, expired.CallerID, expired.Endpoint, expired.Key)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = repo.GetByNaturalKey(ctx, live.CallerID, live.Endpoint, live.Key)
	assert.NoError(t, err)
}
