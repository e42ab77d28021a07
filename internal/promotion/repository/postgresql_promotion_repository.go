// Package repository provides data persistence implementations for promotions.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/promotion/domain"

	apperrors "github.com/allisson/bookings/internal/errors"
)

// PostgreSQLPromotionRepository handles promotion persistence for PostgreSQL
type PostgreSQLPromotionRepository struct {
	db *sql.DB
}

// NewPostgreSQLPromotionRepository creates a new PostgreSQLPromotionRepository
func NewPostgreSQLPromotionRepository(db *sql.DB) *PostgreSQLPromotionRepository {
	return &PostgreSQLPromotionRepository{
		db: db,
	}
}

const postgresPromotionColumns = `id, code, max_uses, uses, active, created_at, updated_at`

// Create inserts a new promotion.
func (r *PostgreSQLPromotionRepository) Create(ctx context.Context, promotion *domain.Promotion) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO promotions
			  (id, code, max_uses, uses, active, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query, promotion.ID, promotion.Code,
		promotion.MaxUses, promotion.Uses, promotion.Active)
	if err != nil {
		return apperrors.Wrap(err, "failed to create promotion")
	}
	return nil
}

// GetByID retrieves a promotion by its id.
func (r *PostgreSQLPromotionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresPromotionColumns + ` FROM promotions WHERE id = $1`

	promotion, err := scanPostgresPromotion(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get promotion")
	}
	return promotion, nil
}

// GetByCode retrieves a promotion by its code.
func (r *PostgreSQLPromotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresPromotionColumns + ` FROM promotions WHERE code = $1`

	promotion, err := scanPostgresPromotion(querier.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get promotion by code")
	}
	return promotion, nil
}

// Consume takes one use of the promotion. The guard clause enforces the cap
// and active flag inside the UPDATE itself, so concurrent consumers cannot
// oversell the promotion.
func (r *PostgreSQLPromotionRepository) Consume(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE promotions
			  SET uses = uses + 1, updated_at = NOW()
			  WHERE id = $1 AND active = TRUE AND uses < max_uses`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to consume promotion")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing promotion from an exhausted one.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrPromotionExhausted
	}
	return nil
}

// Release returns one use of the promotion, locking the row so the decrement
// never drops below zero under concurrent releases.
func (r *PostgreSQLPromotionRepository) Release(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx,
		`SELECT uses FROM promotions WHERE id = $1 FOR UPDATE`, id)

	var uses int
	if err := row.Scan(&uses); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPromotionNotFound
		}
		return apperrors.Wrap(err, "failed to lock promotion")
	}

	if uses == 0 {
		// Nothing to release; a duplicate compensation already ran.
		return nil
	}

	_, err := querier.ExecContext(ctx,
		`UPDATE promotions SET uses = uses - 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to release promotion")
	}
	return nil
}

// scanPostgresPromotion scans a single promotion row.
func scanPostgresPromotion(row *sql.Row) (*domain.Promotion, error) {
	var promotion domain.Promotion
	err := row.Scan(&promotion.ID, &promotion.Code, &promotion.MaxUses,
		&promotion.Uses, &promotion.Active, &promotion.CreatedAt, &promotion.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &promotion, nil
}
