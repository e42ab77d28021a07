// Package repository provides data persistence implementations for payments.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/payment/domain"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// PostgreSQLPaymentRepository handles payment persistence for PostgreSQL
type PostgreSQLPaymentRepository struct {
	db *sql.DB
}

// NewPostgreSQLPaymentRepository creates a new PostgreSQLPaymentRepository
func NewPostgreSQLPaymentRepository(db *sql.DB) *PostgreSQLPaymentRepository {
	return &PostgreSQLPaymentRepository{
		db: db,
	}
}

const postgresPaymentColumns = `id, booking_id, amount_cents, currency, status, provider_ref, created_at, updated_at`

// Create inserts a new payment.
func (r *PostgreSQLPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO payments
			  (id, booking_id, amount_cents, currency, status, provider_ref, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query, payment.ID, payment.BookingID,
		payment.AmountCents, payment.Currency, payment.Status, payment.ProviderRef)
	if err != nil {
		return apperrors.Wrap(err, "failed to create payment")
	}
	return nil
}

// GetByID retrieves a payment by its id.
func (r *PostgreSQLPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresPaymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPostgresPayment(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment")
	}
	return payment, nil
}

// GetByBookingID retrieves the payment attached to a booking.
func (r *PostgreSQLPaymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresPaymentColumns + ` FROM payments WHERE booking_id = $1`

	payment, err := scanPostgresPayment(querier.QueryRowContext(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment by booking")
	}
	return payment, nil
}

// MarkRefunded transitions a captured payment to refunded. The status guard
// makes the refund idempotent under retried saga compensations.
func (r *PostgreSQLPaymentRepository) MarkRefunded(ctx context.Context, id uuid.UUID, providerRef string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE payments
			  SET status = $1, provider_ref = $2, updated_at = NOW()
			  WHERE id = $3 AND status = $4`

	result, err := querier.ExecContext(ctx, query,
		domain.PaymentStatusRefunded, providerRef, id, domain.PaymentStatusCaptured)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark payment refunded")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPaymentNotRefundable
	}
	return nil
}

// UpdateStatus sets the payment status unconditionally.
func (r *PostgreSQLPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, status, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update payment status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// scanPostgresPayment scans a single payment row.
func scanPostgresPayment(row *sql.Row) (*domain.Payment, error) {
	var payment domain.Payment
	err := row.Scan(&payment.ID, &payment.BookingID, &payment.AmountCents,
		&payment.Currency, &payment.Status, &payment.ProviderRef,
		&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
