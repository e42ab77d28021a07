package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/bookings/cmd/app/commands"
	"github.com/allisson/bookings/internal/app"
	"github.com/allisson/bookings/internal/config"
)

func getOutboxCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "dispatch-all",
			Usage: "Dispatch pending outbox events immediately",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "batch-size",
					Aliases: []string{"b"},
					Value:   0,
					Usage:   "Maximum number of events to dispatch (0 uses the configured batch size)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.OutboxDispatcher()
				if err != nil {
					return err
				}

				return commands.RunDispatchAll(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("batch-size")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "retry-dead-letters",
			Usage: "Reset failed outbox events under the attempt ceiling and re-dispatch them",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "max-attempts",
					Aliases: []string{"m"},
					Value:   0,
					Usage:   "Retry ceiling (0 uses the configured maximum attempts)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.OutboxDispatcher()
				if err != nil {
					return err
				}

				return commands.RunRetryDeadLetters(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("max-attempts")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clean-outbox",
			Usage: "Delete sent outbox events older than the specified hours",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "hours",
					Aliases:  []string{"H"},
					Required: true,
					Usage:    "Delete sent events older than this many hours",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.OutboxDispatcher()
				if err != nil {
					return err
				}

				return commands.RunCleanOutbox(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("hours")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clean-idempotency",
			Usage: "Delete idempotency records past their TTL",
			Flags: []cli.Flag{
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				idempotencyUC, err := container.IdempotencyUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanIdempotency(
					ctx,
					idempotencyUC,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "outbox-stats",
			Usage: "Show the number of outbox events per status",
			Flags: []cli.Flag{
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.OutboxDispatcher()
				if err != nil {
					return err
				}

				return commands.RunOutboxStats(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}
