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

// MySQLPromotionRepository handles promotion persistence for MySQL
type MySQLPromotionRepository struct {
	db *sql.DB
}

// NewMySQLPromotionRepository creates a new MySQLPromotionRepository
func NewMySQLPromotionRepository(db *sql.DB) *MySQLPromotionRepository {
	return &MySQLPromotionRepository{
		db: db,
	}
}

const mysqlPromotionColumns = `id, code, max_uses, uses, active, created_at, updated_at`

// Create inserts a new promotion.
func (r *MySQLPromotionRepository) Create(ctx context.Context, promotion *domain.Promotion) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO promotions
			  (id, code, max_uses, uses, active, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, NOW(), NOW())`

	idBytes, err := promotion.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query, idBytes, promotion.Code,
		promotion.MaxUses, promotion.Uses, promotion.Active)
	if err != nil {
		return apperrors.Wrap(err, "failed to create promotion")
	}
	return nil
}

// GetByID retrieves a promotion by its id.
func (r *MySQLPromotionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlPromotionColumns + ` FROM promotions WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	promotion, err := scanMySQLPromotion(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get promotion")
	}
	return promotion, nil
}

// GetByCode retrieves a promotion by its code.
func (r *MySQLPromotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlPromotionColumns + ` FROM promotions WHERE code = ?`

	promotion, err := scanMySQLPromotion(querier.QueryRowContext(ctx, query, code))
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
func (r *MySQLPromotionRepository) Consume(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE promotions
			  SET uses = uses + 1, updated_at = NOW()
			  WHERE id = ? AND active = TRUE AND uses < max_uses`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query, idBytes)
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
func (r *MySQLPromotionRepository) Release(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	row := querier.QueryRowContext(ctx,
		`SELECT uses FROM promotions WHERE id = ? FOR UPDATE`, idBytes)

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

	_, err = querier.ExecContext(ctx,
		`UPDATE promotions SET uses = uses - 1, updated_at = NOW() WHERE id = ?`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to release promotion")
	}
	return nil
}

// scanMySQLPromotion scans a single promotion row.
func scanMySQLPromotion(row *sql.Row) (*domain.Promotion, error) {
	var promotion domain.Promotion
	var idBytes []byte

	err := row.Scan(&idBytes, &promotion.Code, &promotion.MaxUses,
		&promotion.Uses, &promotion.Active, &promotion.CreatedAt, &promotion.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := promotion.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	return &promotion, nil
}
