package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/bookings/internal/app"
	"github.com/allisson/bookings/internal/config"

	bookingDomain "github.com/allisson/bookings/internal/booking/domain"
	outboxDomain "github.com/allisson/bookings/internal/outbox/domain"
)

// RunWorker starts the outbox worker process: it consumes delivery jobs from
// the durable queue and executes the registered event handlers. Blocks until
// receiving SIGINT/SIGTERM.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	registerEventHandlers(container)

	worker, err := container.OutboxWorker()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox worker: %w", err)
	}

	q, err := container.Queue()
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(ctx, q)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("worker stopped")
	return nil
}

// registerEventHandlers wires feature handlers into the worker's registry.
// Handlers run at-least-once and must tolerate replays.
func registerEventHandlers(container *app.Container) {
	logger := container.Logger()
	registry := container.OutboxRegistry()

	// Downstream consumers (notifications, reporting) subscribe here. The
	// default deployment records the delivery in the structured log.
	registry.Register(bookingDomain.EventTypeBookingCancelled,
		func(ctx context.Context, event *outboxDomain.OutboxEvent) error {
			var payload bookingDomain.CancelledEvent
			if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
				return err
			}
			logger.Info("booking cancellation delivered",
				slog.String("booking_id", payload.BookingID.String()),
				slog.String("user_id", payload.UserID.String()),
				slog.Int64("amount_cents", payload.AmountCents),
			)
			return nil
		},
	)
}
