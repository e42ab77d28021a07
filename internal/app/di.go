// Package app provides the dependency injection container assembling
// application components. Components are created lazily on first access.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/bookings/internal/config"
	"github.com/allisson/bookings/internal/database"
	"github.com/allisson/bookings/internal/http"
	"github.com/allisson/bookings/internal/metrics"
	"github.com/allisson/bookings/internal/queue"
	"github.com/allisson/bookings/internal/saga"

	bookingHTTP "github.com/allisson/bookings/internal/booking/http"
	bookingUsecase "github.com/allisson/bookings/internal/booking/usecase"
	idempotencyUsecase "github.com/allisson/bookings/internal/idempotency/usecase"
	outboxHTTP "github.com/allisson/bookings/internal/outbox/http"
	outboxUsecase "github.com/allisson/bookings/internal/outbox/usecase"
	paymentService "github.com/allisson/bookings/internal/payment/service"
	paymentUsecase "github.com/allisson/bookings/internal/payment/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	jetStreamQueue  *queue.JetStreamQueue

	// Managers
	txManager database.TxManager

	// Repositories
	outboxRepo      outboxUsecase.OutboxEventRepository
	idempotencyRepo idempotencyUsecase.IdempotencyRepository
	bookingRepo     bookingUsecase.BookingRepository
	promotionRepo   bookingUsecase.PromotionRedeemer
	paymentRepo     paymentUsecase.PaymentRepository

	// Services
	paymentGateway paymentService.Gateway

	// Use Cases
	outboxProducer     *outboxUsecase.Producer
	outboxDispatcher   *outboxUsecase.Dispatcher
	outboxWorker       *outboxUsecase.Worker
	outboxRegistry     *outboxUsecase.Registry
	idempotencyUseCase *idempotencyUsecase.IdempotencyUsecase
	paymentUseCase     *paymentUsecase.PaymentUsecase
	bookingUseCase     *bookingUsecase.BookingUsecase
	orchestrator       *saga.Orchestrator

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                     sync.Mutex
	loggerInit             sync.Once
	dbInit                 sync.Once
	txManagerInit          sync.Once
	metricsProviderInit    sync.Once
	businessMetricsInit    sync.Once
	queueInit              sync.Once
	outboxRepoInit         sync.Once
	idempotencyRepoInit    sync.Once
	bookingRepoInit        sync.Once
	promotionRepoInit      sync.Once
	paymentRepoInit        sync.Once
	paymentGatewayInit     sync.Once
	producerInit           sync.Once
	dispatcherInit         sync.Once
	workerInit             sync.Once
	registryInit           sync.Once
	idempotencyUseCaseInit sync.Once
	paymentUseCaseInit     sync.Once
	bookingUseCaseInit     sync.Once
	orchestratorInit       sync.Once
	httpServerInit         sync.Once
	metricsServerInit      sync.Once
	initErrors             map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.initErrors["db"] = fmt.Errorf("failed to connect to database: %w", err)
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	c.metricsProviderInit.Do(func() {
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder, or nil when metrics
// are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	c.businessMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["businessMetrics"] = err
			return
		}
		if provider == nil {
			return
		}
		businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["businessMetrics"] = fmt.Errorf("failed to create business metrics: %w", err)
			return
		}
		c.businessMetrics = businessMetrics
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// Queue returns the JetStream-backed durable job queue.
func (c *Container) Queue() (*queue.JetStreamQueue, error) {
	c.queueInit.Do(func() {
		q, err := queue.NewJetStreamQueue(queue.Config{
			URL:          c.config.NATSURL,
			Stream:       c.config.NATSStream,
			Subject:      c.config.NATSSubject,
			Durable:      c.config.NATSDurable,
			MaxDeliver:   c.config.OutboxMaxAttempts,
			BackoffDelay: c.config.OutboxRetryDelay,
			Concurrency:  c.config.WorkerConcurrency,
		}, c.Logger())
		if err != nil {
			c.initErrors["queue"] = fmt.Errorf("failed to create queue: %w", err)
			return
		}
		c.jetStreamQueue = q
	})
	if storedErr, exists := c.initErrors["queue"]; exists {
		return nil, storedErr
	}
	return c.jetStreamQueue, nil
}

// SagaOrchestrator returns the saga orchestrator.
func (c *Container) SagaOrchestrator() *saga.Orchestrator {
	c.orchestratorInit.Do(func() {
		c.orchestrator = saga.NewOrchestrator(c.Logger())
	})
	return c.orchestrator
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.jetStreamQueue != nil {
		c.jetStreamQueue.Close()
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	bookingUC, err := c.BookingUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get booking use case for http server: %w", err)
	}

	dispatcher, err := c.OutboxDispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox dispatcher for http server: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for http server: %w", err)
	}

	idempotencyUC, err := c.IdempotencyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency use case for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	bookingHandler := bookingHTTP.NewBookingHandler(bookingUC, logger)
	outboxHandler := outboxHTTP.NewOutboxHandler(dispatcher, outboxRepo, logger)

	return http.NewServer(c.config, bookingHandler, outboxHandler, idempotencyUC, provider, logger), nil
}
