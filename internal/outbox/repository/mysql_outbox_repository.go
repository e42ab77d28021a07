// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/outbox/domain"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// MySQLOutboxEventRepository handles outbox event persistence for MySQL
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQLOutboxEventRepository
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		db: db,
	}
}

const mysqlOutboxColumns = "id, topic, `key`, payload, dedupe_key, status, attempts, last_error, created_at, enqueued_at, sent_at"

// Create inserts a new outbox event
func (r *MySQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := "INSERT INTO outbox_events (id, topic, `key`, payload, dedupe_key, status, attempts, last_error, created_at) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW())"

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query, idBytes, event.Topic, event.Key, event.Payload,
		event.DedupeKey, event.Status, event.Attempts, event.LastError)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// GetByID retrieves an outbox event by ID
func (r *MySQLOutboxEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := "SELECT " + mysqlOutboxColumns + " FROM outbox_events WHERE id = ?"

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	event, err := scanMySQLOutboxEvent(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event by id")
	}
	return event, nil
}

// GetPendingEvents retrieves the oldest pending events up to limit
func (r *MySQLOutboxEventRepository) GetPendingEvents(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := "SELECT " + mysqlOutboxColumns + " FROM outbox_events " +
		"WHERE status = ? ORDER BY created_at ASC LIMIT ? FOR UPDATE SKIP LOCKED"

	return r.queryEvents(ctx, querier, query, domain.OutboxEventStatusPending, limit)
}

// GetFailedEvents retrieves failed events whose attempts are under the ceiling
func (r *MySQLOutboxEventRepository) GetFailedEvents(
	ctx context.Context,
	maxAttempts int,
	limit int,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := "SELECT " + mysqlOutboxColumns + " FROM outbox_events " +
		"WHERE status = ? AND attempts < ? ORDER BY created_at ASC LIMIT ? FOR UPDATE SKIP LOCKED"

	return r.queryEvents(ctx, querier, query, domain.OutboxEventStatusFailed, maxAttempts, limit)
}

// MarkEnqueued transitions a pending event to enqueued, stamping enqueued_at and
// incrementing attempts. The status guard makes duplicate dispatch triggers no-ops.
func (r *MySQLOutboxEventRepository) MarkEnqueued(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = ?, enqueued_at = NOW(), attempts = attempts + 1
			  WHERE id = ? AND status = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query,
		domain.OutboxEventStatusEnqueued, idBytes, domain.OutboxEventStatusPending)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event enqueued")
	}
	return requireRowAffected(result, domain.ErrEventNotPending)
}

// MarkSent transitions an event to sent with sent_at stamped. Already-sent
// events are left untouched.
func (r *MySQLOutboxEventRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = ?, sent_at = NOW(), last_error = NULL
			  WHERE id = ? AND status <> ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query,
		domain.OutboxEventStatusSent, idBytes, domain.OutboxEventStatusSent)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event sent")
	}
	return nil
}

// MarkFailed transitions an event to failed with the error captured. Sent
// events are never moved back.
func (r *MySQLOutboxEventRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = ?, last_error = ?
			  WHERE id = ? AND status <> ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query,
		domain.OutboxEventStatusFailed, errMsg, idBytes, domain.OutboxEventStatusSent)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event failed")
	}
	return nil
}

// ResetToPending moves a failed event back to pending and clears the error.
func (r *MySQLOutboxEventRepository) ResetToPending(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = ?, last_error = NULL
			  WHERE id = ? AND status = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query,
		domain.OutboxEventStatusPending, idBytes, domain.OutboxEventStatusFailed)
	if err != nil {
		return apperrors.Wrap(err, "failed to reset outbox event")
	}
	return requireRowAffected(result, domain.ErrEventNotFailed)
}

// List retrieves events filtered by optional status and topic, newest first.
func (r *MySQLOutboxEventRepository) List(
	ctx context.Context,
	filter domain.ListFilter,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := "SELECT " + mysqlOutboxColumns + " FROM outbox_events " +
		"WHERE (? = '' OR status = ?) AND (? = '' OR topic = ?) " +
		"ORDER BY created_at DESC LIMIT ? OFFSET ?"

	return r.queryEvents(ctx, querier, query,
		filter.Status, filter.Status, filter.Topic, filter.Topic, filter.Limit, filter.Offset)
}

// Delete removes a single event
func (r *MySQLOutboxEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM outbox_events WHERE id = ?`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete outbox event")
	}
	return requireRowAffected(result, domain.ErrEventNotFound)
}

// DeleteSentOlderThan removes sent events whose sent_at is older than the cutoff.
func (r *MySQLOutboxEventRepository) DeleteSentOlderThan(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events WHERE status = ? AND sent_at IS NOT NULL AND sent_at < ?`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusSent, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete sent outbox events")
	}
	return result.RowsAffected()
}

// CountByStatus returns the number of events per status.
func (r *MySQLOutboxEventRepository) CountByStatus(ctx context.Context) (*domain.StatusCounts, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT
			  COALESCE(SUM(status = 'pending'), 0),
			  COALESCE(SUM(status = 'enqueued'), 0),
			  COALESCE(SUM(status = 'sent'), 0),
			  COALESCE(SUM(status = 'failed'), 0)
			  FROM outbox_events`

	var counts domain.StatusCounts
	err := querier.QueryRowContext(ctx, query).Scan(
		&counts.Pending, &counts.Enqueued, &counts.Sent, &counts.Failed,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count outbox events")
	}
	return &counts, nil
}

// queryEvents runs a multi-row event query and scans the results.
func (r *MySQLOutboxEventRepository) queryEvents(
	ctx context.Context,
	querier database.Querier,
	query string,
	args ...any,
) ([]*domain.OutboxEvent, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		var idBytes []byte

		err := rows.Scan(&idBytes, &event.Topic, &event.Key, &event.Payload, &event.DedupeKey,
			&event.Status, &event.Attempts, &event.LastError,
			&event.CreatedAt, &event.EnqueuedAt, &event.SentAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}

		// Convert bytes back to UUID
		if err := event.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, err
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox events")
	}

	return events, nil
}

// scanMySQLOutboxEvent scans a single event row.
func scanMySQLOutboxEvent(row *sql.Row) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	var idBytes []byte

	err := row.Scan(&idBytes, &event.Topic, &event.Key, &event.Payload, &event.DedupeKey,
		&event.Status, &event.Attempts, &event.LastError,
		&event.CreatedAt, &event.EnqueuedAt, &event.SentAt)
	if err != nil {
		return nil, err
	}

	if err := event.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	return &event, nil
}
