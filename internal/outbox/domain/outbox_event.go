// Package domain defines the core outbox domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/errors"
)

// OutboxEventStatus represents the status of an outbox event.
type OutboxEventStatus string

const (
	// OutboxEventStatusPending marks an event written by a producer and not yet enqueued.
	OutboxEventStatusPending OutboxEventStatus = "pending"
	// OutboxEventStatusEnqueued marks an event whose delivery job is on the queue.
	OutboxEventStatusEnqueued OutboxEventStatus = "enqueued"
	// OutboxEventStatusSent marks an event whose handlers all completed.
	OutboxEventStatusSent OutboxEventStatus = "sent"
	// OutboxEventStatusFailed marks an event whose enqueue or handling failed.
	// Failed events are retained as dead letters and can be reset to pending.
	OutboxEventStatusFailed OutboxEventStatus = "failed"
)

// OutboxEvent represents a domain event in the transactional outbox pattern.
// It is written in the same transaction as the business mutation it describes,
// so the event is never lost relative to the mutation.
type OutboxEvent struct {
	ID         uuid.UUID
	Topic      string
	Key        string
	Payload    string
	DedupeKey  *string
	Status     OutboxEventStatus
	Attempts   int
	LastError  *string
	CreatedAt  time.Time
	EnqueuedAt *time.Time
	SentAt     *time.Time
}

// StatusCounts holds the number of events per status, used by the
// administrative stats endpoint and health checks.
type StatusCounts struct {
	Pending  int64 `json:"pending"`
	Enqueued int64 `json:"enqueued"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
}

// ListFilter narrows administrative event listings. Empty Status or Topic
// means no filtering on that attribute.
type ListFilter struct {
	Status string
	Topic  string
	Offset int
	Limit  int
}

// Domain-specific errors for outbox operations.
var (
	// ErrEventNotFound indicates the requested outbox event does not exist.
	ErrEventNotFound = errors.Wrap(errors.ErrNotFound, "outbox event not found")

	// ErrEventNotPending indicates a dispatch was attempted on an event that
	// already left the pending status; duplicate dispatch triggers are no-ops.
	ErrEventNotPending = errors.Wrap(errors.ErrConflict, "outbox event is not pending")

	// ErrEventNotFailed indicates a retry was attempted on an event that is not
	// in the failed status.
	ErrEventNotFailed = errors.Wrap(errors.ErrConflict, "outbox event is not failed")
)

// ValidStatuses lists every status accepted by list filters.
func ValidStatuses() []string {
	return []string{
		string(OutboxEventStatusPending),
		string(OutboxEventStatusEnqueued),
		string(OutboxEventStatusSent),
		string(OutboxEventStatusFailed),
	}
}
