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

// MySQLIdempotencyRepository handles idempotency record persistence for MySQL
type MySQLIdempotencyRepository struct {
	db *sql.DB
}

// NewMySQLIdempotencyRepository creates a new MySQLIdempotencyRepository
func NewMySQLIdempotencyRepository(db *sql.DB) *MySQLIdempotencyRepository {
	return &MySQLIdempotencyRepository{
		db: db,
	}
}

const mysqlIdempotencyColumns = "id, caller_id, endpoint, `key`, payload_hash, status, response, response_code, resource_id, last_error, created_at, expires_at"

// Insert atomically creates a new record. The unique constraint on
// (caller_id, endpoint, key) is the mutual-exclusion mechanism.
func (r *MySQLIdempotencyRepository) Insert(ctx context.Context, record *domain.Record) error {
	querier := database.GetTx(ctx, r.db)

	query := "INSERT INTO idempotency_records " +
		"(id, caller_id, endpoint, `key`, payload_hash, status, created_at, expires_at) " +
		"VALUES (?, ?, ?, ?, ?, ?, NOW(), ?)"

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := record.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query, idBytes, record.CallerID, record.Endpoint,
		record.Key, record.PayloadHash, record.Status, record.ExpiresAt)
	if err != nil {
		if isMySQLDuplicateEntry(err) {
			return domain.ErrRecordExists
		}
		return apperrors.Wrap(err, "failed to insert idempotency record")
	}
	return nil
}

// GetByNaturalKey retrieves a record by its (caller, endpoint, key) triple.
func (r *MySQLIdempotencyRepository) GetByNaturalKey(
	ctx context.Context,
	callerID, endpoint, key string,
) (*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := "SELECT " + mysqlIdempotencyColumns + " FROM idempotency_records " +
		"WHERE caller_id = ? AND endpoint = ? AND `key` = ?"

	record, err := scanMySQLRecord(querier.QueryRowContext(ctx, query, callerID, endpoint, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get idempotency record")
	}
	return record, nil
}

// Complete finalizes an in-progress record.
func (r *MySQLIdempotencyRepository) Complete(
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
			  SET status = ?, response = ?, response_code = ?, resource_id = ?, last_error = ?
			  WHERE id = ? AND status = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query, status, response, responseCode,
		resourceID, lastError, idBytes, domain.RecordStatusInProgress)
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
func (r *MySQLIdempotencyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, `DELETE FROM idempotency_records WHERE id = ?`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete idempotency record")
	}
	return nil
}

// DeleteExpired removes records whose TTL has passed.
func (r *MySQLIdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at < ?`, now)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired idempotency records")
	}
	return result.RowsAffected()
}

// scanMySQLRecord scans a single record row.
func scanMySQLRecord(row *sql.Row) (*domain.Record, error) {
	var record domain.Record
	var idBytes []byte

	err := row.Scan(&idBytes, &record.CallerID, &record.Endpoint, &record.Key,
		&record.PayloadHash, &record.Status, &record.Response, &record.ResponseCode,
		&record.ResourceID, &record.LastError, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if err := record.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	return &record, nil
}

// isMySQLDuplicateEntry checks if the error is a MySQL duplicate entry violation
func isMySQLDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	// MySQL: "Error 1062 (23000): Duplicate entry ..."
	return strings.Contains(errMsg, "duplicate entry") || strings.Contains(errMsg, "error 1062")
}
