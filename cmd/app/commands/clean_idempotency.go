package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	idempotencyUsecase "github.com/allisson/bookings/internal/idempotency/usecase"
)

// RunCleanIdempotency deletes idempotency records past their TTL. Supports
// text/JSON output formats.
func RunCleanIdempotency(
	ctx context.Context,
	idempotencyUC *idempotencyUsecase.IdempotencyUsecase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("cleaning expired idempotency records")

	deleted, err := idempotencyUC.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean idempotency records: %w", err)
	}

	if format == "json" {
		outputCountJSON(writer, "deleted", deleted)
	} else {
		fmt.Fprintf(writer, "Deleted %d expired idempotency record(s)\n", deleted)
	}

	logger.Info("idempotency cleanup completed", slog.Int64("deleted", deleted))
	return nil
}
