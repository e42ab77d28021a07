// Package domain defines the core promotion domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/bookings/internal/errors"
)

// Promotion is a limited-use discount code. Uses may never exceed MaxUses;
// consumption is enforced with a guarded increment at the storage layer, not
// with a read-then-write in application code.
type Promotion struct {
	ID        uuid.UUID
	Code      string
	MaxUses   int
	Uses      int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Domain-specific errors for promotion operations.
var (
	// ErrPromotionNotFound indicates the requested promotion does not exist.
	ErrPromotionNotFound = errors.Wrap(errors.ErrNotFound, "promotion not found")

	// ErrPromotionExhausted indicates the promotion is inactive or fully used.
	ErrPromotionExhausted = errors.Wrap(errors.ErrConflict, "promotion is exhausted or inactive")
)
