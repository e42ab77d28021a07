// Package repository provides data persistence implementations for idempotency records.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/idempotency/domain"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// PostgreSQLIdempotencyRepository handles idempotency record persistence for PostgreSQL
type PostgreSQLIdempotencyRepository struct {
	db *sql.DB
}

// NewPostgreSQLIdempotencyRepository creates a new PostgreSQLIdempotencyRepository
func NewPostgreSQLIdempotencyRepository(db *sql.DB) *PostgreSQLIdempotencyRepository {
	return &PostgreSQLIdempotencyRepository{
		db: db,
	}
}

const postgresIdempotencyColumns = `id, caller_id, endpoint, key, payload_hash, status, response, response_code, resource_id, last_error, created_at, expires_at`

// Insert atomically creates a new record. The unique constraint on
// (caller_id, endpoint, key) is the mutual-exclusion mechanism: a losing
// concurrent insert gets ErrRecordExists and must inspect the winner.
func (r *PostgreSQLIdempotencyRepository) Insert(ctx context.Context, record *domain.Record) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO idempotency_records
			  (id, caller_id, endpoint, key, payload_hash, status, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)`

	_, err := querier.ExecContext(ctx, query, record.ID, record.CallerID, record.Endpoint,
		record.Key, record.PayloadHash, record.Status, record.ExpiresAt)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return domain.ErrRecordExists
		}
		return apperrors.Wrap(err, "failed to insert idempotency record")
	}
	return nil
}

// GetByNaturalKey retrieves a record by its (caller, endpoint, key) triple.
func (r *PostgreSQLIdempotencyRepository) GetByNaturalKey(
	ctx context.Context,
	callerID, endpoint, key string,
) (*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresIdempotencyColumns + `
			  FROM idempotency_records
			  WHERE caller_id = $1 AND endpoint = $2 AND key = $3`

	record, err := scanPostgresRecord(querier.QueryRowContext(ctx, query, callerID, endpoint, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get idempotency record")
	}
	return record, nil
}

// Complete finalizes an in-progress record. The status guard ensures only the
// operation that created the record can finalize it.
func (r *PostgreSQLIdempotencyRepository) Complete(
	ctx context.Context,
	id uuid.UUID,
	status domain.RecordStatus,
	response *string,
	responseCode *int,
	resourceID *string,
	lastError *string,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE idempotency_records
			  SET status = $1, response = $2, response_code = $3, resource_id = $4, last_error = $5
			  WHERE id = $6 AND status = $7`

	result, err := querier.ExecContext(ctx, query, status, response, responseCode,
		resourceID, lastError, id, domain.RecordStatusInProgress)
	if err != nil {
		return apperrors.Wrap(err, "failed to complete idempotency record")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRecordNotInProgress
	}
	return nil
}

// Delete removes a record by id, used to take over an expired key.
func (r *PostgreSQLIdempotencyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM idempotency_records WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete idempotency record")
	}
	return nil
}

// DeleteExpired removes records whose TTL has passed.
func (r *PostgreSQLIdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at < $1`, now)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired idempotency records")
	}
	return result.RowsAffected()
}

// scanPostgresRecord scans a single record row.
func scanPostgresRecord(row *sql.Row) (*domain.Record, error) {
	var record domain.Record
	err := row.Scan(&record.ID, &record.CallerID, &record.Endpoint, &record.Key,
		&record.PayloadHash, &record.Status, &record.Response, &record.ResponseCode,
		&record.ResourceID, &record.LastError, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique constraint violation
func isPostgreSQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	// PostgreSQL: "duplicate key value violates unique constraint" or "pq: duplicate key"
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "unique constraint")
}
