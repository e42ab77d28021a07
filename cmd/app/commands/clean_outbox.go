package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	outboxUsecase "github.com/allisson/bookings/internal/outbox/usecase"
)

// RunCleanOutbox deletes sent outbox events older than the specified number
// of hours. Only sent events are eligible; pending, enqueued and failed rows
// are never touched by retention. Supports text/JSON output formats.
func RunCleanOutbox(
	ctx context.Context,
	dispatcher *outboxUsecase.Dispatcher,
	logger *slog.Logger,
	writer io.Writer,
	hours int,
	format string,
) error {
	if hours <= 0 {
		return fmt.Errorf("hours must be a positive number, got: %d", hours)
	}

	logger.Info("cleaning sent outbox events", slog.Int("hours", hours))

	deleted, err := dispatcher.CleanupSent(ctx, time.Duration(hours)*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to clean outbox events: %w", err)
	}

	if format == "json" {
		outputCountJSON(writer, "deleted", deleted)
	} else {
		fmt.Fprintf(writer, "Deleted %d sent event(s) older than %d hour(s)\n", deleted, hours)
	}

	logger.Info("outbox cleanup completed", slog.Int64("deleted", deleted))
	return nil
}
