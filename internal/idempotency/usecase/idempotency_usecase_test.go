package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/bookings/internal/idempotency/domain"
	"github.com/allisson/bookings/internal/idempotency/usecase/mocks"
)

const testTTL = time.Hour

func beginInput() BeginInput {
	return BeginInput{
		CallerID: "client-1",
		Endpoint: "POST /v1/bookings/:id/cancel",
		Key:      "key-1",
		Payload:  []byte(`{"reason":"changed plans"}`),
	}
}

// TestHashPayload tests the payload fingerprint.
func TestHashPayload(t *testing.T) {
	first := HashPayload([]byte("payload"))
	second := HashPayload([]byte("payload"))
	different := HashPayload([]byte("other payload"))

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, different)
	assert.Len(t, first, 64)
}

// TestIdempotencyUsecase_BeginOrReuse tests the BeginOrReuse method of IdempotencyUsecase.
func TestIdempotencyUsecase_BeginOrReuse(t *testing.T) {
	ctx := context.Background()

	t.Run("Proceed_FirstRequestClaimsTheKey", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		input := beginInput()

		var inserted *domain.Record
		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Run(func(args mock.Arguments) {
				inserted = args.Get(1).(*domain.Record)
			}).
			Return(nil).
			Once()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, input)

		assert.NoError(t, err)
		assert.Equal(t, ModeProceed, out.Mode)
		assert.Equal(t, inserted.ID, out.RecordID)

		assert.Equal(t, input.CallerID, inserted.CallerID)
		assert.Equal(t, input.Endpoint, inserted.Endpoint)
		assert.Equal(t, input.Key, inserted.Key)
		assert.Equal(t, HashPayload(input.Payload), inserted.PayloadHash)
		assert.Equal(t, domain.RecordStatusInProgress, inserted.Status)
		assert.WithinDuration(t, time.Now().Add(testTTL), inserted.ExpiresAt, time.Minute)

		mockRepo.AssertExpectations(t)
	})

	t.Run("Reuse_CompletedRecordReplaysStoredResponse", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		input := beginInput()

		response := `{"id":"booking-1","status":"cancelled"}`
		responseCode := 200
		existing := &domain.Record{
			ID:           uuid.Must(uuid.NewV7()),
			CallerID:     input.CallerID,
			Endpoint:     input.Endpoint,
			Key:          input.Key,
			PayloadHash:  HashPayload(input.Payload),
			Status:       domain.RecordStatusCompleted,
			Response:     &response,
			ResponseCode: &responseCode,
			ExpiresAt:    time.Now().Add(time.Hour),
		}

		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(domain.ErrRecordExists).
			Once()
		mockRepo.On("GetByNaturalKey", ctx, input.CallerID, input.Endpoint, input.Key).
			Return(existing, nil).
			Once()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, input)

		assert.NoError(t, err)
		assert.Equal(t, ModeReuse, out.Mode)
		assert.Equal(t, existing.ID, out.RecordID)
		assert.Equal(t, existing, out.Record)

		mockRepo.AssertExpectations(t)
	})

	t.Run("InProgress_ConcurrentRequestHoldsTheKey", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		input := beginInput()

		existing := &domain.Record{
			ID:          uuid.Must(uuid.NewV7()),
			PayloadHash: HashPayload(input.Payload),
			Status:      domain.RecordStatusInProgress,
			ExpiresAt:   time.Now().Add(time.Hour),
		}

		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(domain.ErrRecordExists).
			Once()
		mockRepo.On("GetByNaturalKey", ctx, input.CallerID, input.Endpoint, input.Key).
			Return(existing, nil).
			Once()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, input)

		assert.NoError(t, err)
		assert.Equal(t, ModeInProgress, out.Mode)

		mockRepo.AssertExpectations(t)
	})

	t.Run("Error_KeyReusedWithDifferentPayload", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		input := beginInput()

		existing := &domain.Record{
			ID:          uuid.Must(uuid.NewV7()),
			PayloadHash: HashPayload([]byte(`{"reason":"completely different"}`)),
			Status:      domain.RecordStatusCompleted,
			ExpiresAt:   time.Now().Add(time.Hour),
		}

		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(domain.ErrRecordExists).
			Once()
		mockRepo.On("GetByNaturalKey", ctx, input.CallerID, input.Endpoint, input.Key).
			Return(existing, nil).
			Once()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, input)

		assert.ErrorIs(t, err, domain.ErrKeyPayloadMismatch)
		assert.Nil(t, out)
	})

	t.Run("Proceed_ExpiredRecordIsTreatedAsAbsent", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		input := beginInput()

		expired := &domain.Record{
			ID:          uuid.Must(uuid.NewV7()),
			PayloadHash: HashPayload(input.Payload),
			Status:      domain.RecordStatusInProgress,
			ExpiresAt:   time.Now().Add(-time.Minute),
		}

		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(domain.ErrRecordExists).
			Once()
		mockRepo.On("GetByNaturalKey", ctx, input.CallerID, input.Endpoint, input.Key).
			Return(expired, nil).
			Once()
		mockRepo.On("Delete", ctx, expired.ID).Return(nil).Once()
		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(nil).
			Once()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, input)

		assert.NoError(t, err)
		assert.Equal(t, ModeProceed, out.Mode)

		mockRepo.AssertExpectations(t)
	})

	t.Run("Proceed_FailedRecordYieldsOwnershipToRetry", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		input := beginInput()

		lastError := "payment provider unavailable"
		failed := &domain.Record{
			ID:          uuid.Must(uuid.NewV7()),
			PayloadHash: HashPayload(input.Payload),
			Status:      domain.RecordStatusFailed,
			LastError:   &lastError,
			ExpiresAt:   time.Now().Add(time.Hour),
		}

		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(domain.ErrRecordExists).
			Once()
		mockRepo.On("GetByNaturalKey", ctx, input.CallerID, input.Endpoint, input.Key).
			Return(failed, nil).
			Once()
		mockRepo.On("Delete", ctx, failed.ID).Return(nil).Once()
		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(nil).
			Once()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, input)

		assert.NoError(t, err)
		assert.Equal(t, ModeProceed, out.Mode)

		mockRepo.AssertExpectations(t)
	})

	t.Run("Proceed_WinnerCleanedUpBetweenInsertAndLookup", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		input := beginInput()

		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(domain.ErrRecordExists).
			Once()
		mockRepo.On("GetByNaturalKey", ctx, input.CallerID, input.Endpoint, input.Key).
			Return(nil, domain.ErrRecordNotFound).
			Once()
		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(nil).
			Once()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, input)

		assert.NoError(t, err)
		assert.Equal(t, ModeProceed, out.Mode)
	})

	t.Run("Error_LosingTheRaceTwice", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		input := beginInput()

		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(domain.ErrRecordExists).
			Twice()
		mockRepo.On("GetByNaturalKey", ctx, input.CallerID, input.Endpoint, input.Key).
			Return(nil, domain.ErrRecordNotFound).
			Twice()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, input)

		assert.ErrorIs(t, err, domain.ErrKeyInProgress)
		assert.Nil(t, out)
	})

	t.Run("Error_InsertFailure", func(t *testing.T) {
		mockRepo := new(mocks.MockIdempotencyRepository)
		insertErr := errors.New("connection reset")

		mockRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Record")).
			Return(insertErr).
			Once()

		uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
		out, err := uc.BeginOrReuse(ctx, beginInput())

		assert.ErrorIs(t, err, insertErr)
		assert.Nil(t, out)
	})
}

// TestIdempotencyUsecase_CompleteOK tests the CompleteOK method of IdempotencyUsecase.
func TestIdempotencyUsecase_CompleteOK(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(mocks.MockIdempotencyRepository)
	recordID := uuid.Must(uuid.NewV7())

	response := `{"id":"booking-1"}`
	responseCode := 200
	resourceID := "booking-1"
	mockRepo.On("Complete", ctx, recordID, domain.RecordStatusCompleted, &response, &responseCode, &resourceID, (*string)(nil)).
		Return(nil).
		Once()

	uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
	err := uc.CompleteOK(ctx, recordID, response, responseCode, resourceID)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

// TestIdempotencyUsecase_CompleteFailed tests the CompleteFailed method of IdempotencyUsecase.
func TestIdempotencyUsecase_CompleteFailed(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(mocks.MockIdempotencyRepository)
	recordID := uuid.Must(uuid.NewV7())

	responseCode := 500
	lastError := "payment provider unavailable"
	mockRepo.On("Complete", ctx, recordID, domain.RecordStatusFailed, (*string)(nil), &responseCode, (*string)(nil), &lastError).
		Return(nil).
		Once()

	uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
	err := uc.CompleteFailed(ctx, recordID, responseCode, lastError)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

// TestIdempotencyUsecase_CleanupExpired tests the CleanupExpired method of IdempotencyUsecase.
func TestIdempotencyUsecase_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(mocks.MockIdempotencyRepository)

	mockRepo.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).
		Return(int64(3), nil).
		Once()

	uc := NewIdempotencyUsecase(mockRepo, testTTL, nil)
	deleted, err := uc.CleanupExpired(ctx)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
