// Package dto provides data transfer objects for outbox HTTP endpoints.
package dto

import (
	"time"

	"github.com/allisson/bookings/internal/outbox/domain"
)

// OutboxEventResponse is the public representation of an outbox event.
type OutboxEventResponse struct {
	ID         string  `json:"id"`
	Topic      string  `json:"topic"`
	Key        string  `json:"key"`
	Payload    string  `json:"payload"`
	DedupeKey  *string `json:"dedupe_key,omitempty"`
	Status     string  `json:"status"`
	Attempts   int     `json:"attempts"`
	LastError  *string `json:"last_error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	EnqueuedAt *string `json:"enqueued_at,omitempty"`
	SentAt     *string `json:"sent_at,omitempty"`
}

// MapEventToResponse converts a domain event to its response form.
func MapEventToResponse(event *domain.OutboxEvent) OutboxEventResponse {
	response := OutboxEventResponse{
		ID:        event.ID.String(),
		Topic:     event.Topic,
		Key:       event.Key,
		Payload:   event.Payload,
		DedupeKey: event.DedupeKey,
		Status:    string(event.Status),
		Attempts:  event.Attempts,
		LastError: event.LastError,
		CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339),
	}
	if event.EnqueuedAt != nil {
		enqueuedAt := event.EnqueuedAt.UTC().Format(time.RFC3339)
		response.EnqueuedAt = &enqueuedAt
	}
	if event.SentAt != nil {
		sentAt := event.SentAt.UTC().Format(time.RFC3339)
		response.SentAt = &sentAt
	}
	return response
}

// ListEventsResponse wraps a page of outbox events.
type ListEventsResponse struct {
	Events []OutboxEventResponse `json:"events"`
	Offset int                   `json:"offset"`
	Limit  int                   `json:"limit"`
}

// MapEventsToListResponse converts a page of domain events.
func MapEventsToListResponse(events []*domain.OutboxEvent, offset, limit int) ListEventsResponse {
	response := ListEventsResponse{
		Events: make([]OutboxEventResponse, 0, len(events)),
		Offset: offset,
		Limit:  limit,
	}
	for _, event := range events {
		response.Events = append(response.Events, MapEventToResponse(event))
	}
	return response
}

// StatsResponse reports event counts per status.
type StatsResponse struct {
	Pending  int64 `json:"pending"`
	Enqueued int64 `json:"enqueued"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
}

// MapStatsToResponse converts domain status counts.
func MapStatsToResponse(counts *domain.StatusCounts) StatsResponse {
	return StatsResponse{
		Pending:  counts.Pending,
		Enqueued: counts.Enqueued,
		Sent:     counts.Sent,
		Failed:   counts.Failed,
	}
}

// BulkOperationResponse reports how many events a bulk operation touched.
type BulkOperationResponse struct {
	Count int64 `json:"count"`
}
