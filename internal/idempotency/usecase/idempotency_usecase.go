// Package usecase implements the idempotency business logic.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/idempotency/domain"
)

// IdempotencyRepository defines idempotency record repository operations
type IdempotencyRepository interface {
	Insert(ctx context.Context, record *domain.Record) error
	GetByNaturalKey(ctx context.Context, callerID, endpoint, key string) (*domain.Record, error)
	Complete(ctx context.Context, id uuid.UUID, status domain.RecordStatus, response *string, responseCode *int, resourceID *string, lastError *string) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Mode tells the caller what to do after BeginOrReuse.
type Mode string

const (
	// ModeProceed means this request owns the key and must execute the
	// operation, then finalize the record.
	ModeProceed Mode = "proceed"
	// ModeReuse means a completed record exists for the same payload; the
	// caller must replay the stored response without re-executing.
	ModeReuse Mode = "reuse"
	// ModeInProgress means another request holds the key right now; the caller
	// should surface a retry-later error instead of double-executing.
	ModeInProgress Mode = "in_progress"
)

// BeginInput identifies the logical operation being deduplicated.
type BeginInput struct {
	CallerID string
	Endpoint string
	Key      string
	Payload  []byte
}

// BeginOutput carries the decision and, on reuse, the stored response.
type BeginOutput struct {
	Mode     Mode
	RecordID uuid.UUID
	Record   *domain.Record
}

// IdempotencyUsecase arbitrates duplicate requests through unique-constraint
// inserts on the records table.
type IdempotencyUsecase struct {
	repo   IdempotencyRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdempotencyUsecase creates a new IdempotencyUsecase.
func NewIdempotencyUsecase(repo IdempotencyRepository, ttl time.Duration, logger *slog.Logger) *IdempotencyUsecase {
	return &IdempotencyUsecase{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
	}
}

// HashPayload returns the canonical fingerprint of a request body.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// BeginOrReuse claims the key or resolves what happened to it. The winning
// path inserts an in_progress record; losers inspect the existing record and
// get one of three outcomes. An expired record is treated as absent: it is
// deleted and the insert retried once, so a crashed owner cannot wedge the
// key forever. A failed record also yields ownership, because a server-side
// failure must be retryable with the same key.
func (u *IdempotencyUsecase) BeginOrReuse(ctx context.Context, input BeginInput) (*BeginOutput, error) {
	hash := HashPayload(input.Payload)

	for attempt := 0; attempt < 2; attempt++ {
		record := &domain.Record{
			ID:          uuid.Must(uuid.NewV7()),
			CallerID:    input.CallerID,
			Endpoint:    input.Endpoint,
			Key:         input.Key,
			PayloadHash: hash,
			Status:      domain.RecordStatusInProgress,
			ExpiresAt:   time.Now().Add(u.ttl),
		}

		err := u.repo.Insert(ctx, record)
		if err == nil {
			return &BeginOutput{Mode: ModeProceed, RecordID: record.ID}, nil
		}
		if !errors.Is(err, domain.ErrRecordExists) {
			return nil, err
		}

		existing, err := u.repo.GetByNaturalKey(ctx, input.CallerID, input.Endpoint, input.Key)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				// The winner finished and was cleaned up between our insert
				// and lookup. Retry the insert.
				continue
			}
			return nil, err
		}

		out, retry, err := u.resolveExisting(ctx, existing, hash)
		if err != nil {
			return nil, err
		}
		if retry {
			continue
		}
		return out, nil
	}

	// Two rounds of insert-then-resolve both lost the race.
	return nil, domain.ErrKeyInProgress
}

// resolveExisting decides the outcome for a key that already has a record.
func (u *IdempotencyUsecase) resolveExisting(ctx context.Context, existing *domain.Record, hash string) (*BeginOutput, bool, error) {
	if existing.Expired(time.Now()) {
		if err := u.repo.Delete(ctx, existing.ID); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	if existing.PayloadHash != hash {
		return nil, false, domain.ErrKeyPayloadMismatch
	}

	switch existing.Status {
	case domain.RecordStatusInProgress:
		return &BeginOutput{Mode: ModeInProgress, RecordID: existing.ID, Record: existing}, false, nil
	case domain.RecordStatusCompleted:
		return &BeginOutput{Mode: ModeReuse, RecordID: existing.ID, Record: existing}, false, nil
	case domain.RecordStatusFailed:
		// Yield ownership to the retry.
		if err := u.repo.Delete(ctx, existing.ID); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	default:
		return nil, false, domain.ErrRecordNotFound
	}
}

// CompleteOK stores the operation's response for replay and releases the key
// into its completed state.
func (u *IdempotencyUsecase) CompleteOK(ctx context.Context, recordID uuid.UUID, response string, responseCode int, resourceID string) error {
	var resource *string
	if resourceID != "" {
		resource = &resourceID
	}
	return u.repo.Complete(ctx, recordID, domain.RecordStatusCompleted, &response, &responseCode, resource, nil)
}

// CompleteFailed marks the operation as failed so the same key can be retried.
func (u *IdempotencyUsecase) CompleteFailed(ctx context.Context, recordID uuid.UUID, responseCode int, lastError string) error {
	return u.repo.Complete(ctx, recordID, domain.RecordStatusFailed, nil, &responseCode, nil, &lastError)
}

// CleanupExpired removes records past their TTL and returns how many were
// deleted.
func (u *IdempotencyUsecase) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := u.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if u.logger != nil && deleted > 0 {
		u.logger.Info("expired idempotency records removed", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}
