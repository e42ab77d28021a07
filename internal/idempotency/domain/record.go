// Package domain defines the core idempotency domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/errors"
)

// RecordStatus represents the status of an idempotency record.
type RecordStatus string

const (
	// RecordStatusInProgress marks an operation that began but has not finalized.
	// At most one in-progress record may exist per natural key.
	RecordStatusInProgress RecordStatus = "in_progress"
	// RecordStatusCompleted marks a finished operation whose response is stored
	// for replay.
	RecordStatusCompleted RecordStatus = "completed"
	// RecordStatusFailed marks an operation that finished with a server-side
	// failure; the same key may be retried.
	RecordStatusFailed RecordStatus = "failed"
)

// Record deduplicates retried mutating requests. The natural key is
// (caller_id, endpoint, key); the payload hash detects key reuse with a
// different request body.
type Record struct {
	ID           uuid.UUID
	CallerID     string
	Endpoint     string
	Key          string
	PayloadHash  string
	Status       RecordStatus
	Response     *string
	ResponseCode *int
	ResourceID   *string
	LastError    *string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the record's ownership window has passed. An expired
// record is treated as absent: the same key may start a new logical operation.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Domain-specific errors for idempotency operations.
var (
	// ErrRecordNotFound indicates the requested idempotency record does not exist.
	ErrRecordNotFound = errors.Wrap(errors.ErrNotFound, "idempotency record not found")

	// ErrRecordExists indicates an insert hit the natural-key unique constraint.
	ErrRecordExists = errors.Wrap(errors.ErrConflict, "idempotency record already exists")

	// ErrKeyInProgress indicates the same key is being processed concurrently;
	// the caller must wait and retry instead of double-executing.
	ErrKeyInProgress = errors.Wrap(errors.ErrInProgress, "idempotency key is being processed")

	// ErrKeyPayloadMismatch indicates the key was reused with a different
	// request body, which is a client error distinct from a legitimate replay.
	ErrKeyPayloadMismatch = errors.Wrap(errors.ErrInvalidInput, "idempotency key reused with a different payload")

	// ErrRecordNotInProgress indicates a finalize was attempted on a record
	// that already left the in-progress status.
	ErrRecordNotInProgress = errors.Wrap(errors.ErrConflict, "idempotency record is not in progress")
)
