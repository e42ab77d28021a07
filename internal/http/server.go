// Package http provides the HTTP server wiring the public and administrative
// routes.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/allisson/bookings/internal/config"
	"github.com/allisson/bookings/internal/metrics"

	bookingHTTP "github.com/allisson/bookings/internal/booking/http"
	idempotencyHTTP "github.com/allisson/bookings/internal/idempotency/http"
	idempotencyUseCase "github.com/allisson/bookings/internal/idempotency/usecase"
	outboxHTTP "github.com/allisson/bookings/internal/outbox/http"
)

// Server represents the HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(
	cfg *config.Config,
	bookingHandler *bookingHTTP.BookingHandler,
	outboxHandler *outboxHTTP.OutboxHandler,
	idempotencyUC *idempotencyUseCase.IdempotencyUsecase,
	meterProvider *metrics.Provider,
	logger *slog.Logger,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if cfg.MetricsEnabled && meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(meterProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	// Health and readiness endpoints
	router.GET("/health", healthHandler)
	router.GET("/ready", readyHandler)

	v1 := router.Group("/v1")

	// Public booking routes; cancellation goes through the idempotency gate.
	bookings := v1.Group("/bookings")
	bookings.GET("", bookingHandler.ListHandler)
	bookings.GET("/:id", bookingHandler.GetHandler)
	bookings.POST("/:id/cancel",
		idempotencyHTTP.Middleware(idempotencyUC, logger),
		bookingHandler.CancelHandler,
	)

	// Administrative outbox routes, rate limited.
	outbox := v1.Group("/outbox")
	if cfg.RateLimitEnabled {
		outbox.Use(RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, logger))
	}
	outbox.GET("/events", outboxHandler.ListHandler)
	outbox.GET("/events/:id", outboxHandler.GetHandler)
	outbox.POST("/events/:id/retry", outboxHandler.RetryHandler)
	outbox.DELETE("/events/:id", outboxHandler.DeleteHandler)
	outbox.POST("/retry-dead-letters", outboxHandler.RetryDeadLettersHandler)
	outbox.POST("/dispatch", outboxHandler.DispatchAllHandler)
	outbox.POST("/cleanup", outboxHandler.CleanupHandler)
	outbox.GET("/stats", outboxHandler.StatsHandler)

	return &Server{
		router: router,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness.
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readyHandler reports readiness.
func readyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
