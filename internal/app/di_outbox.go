package app

import (
	"fmt"

	outboxRepository "github.com/allisson/bookings/internal/outbox/repository"
	outboxUsecase "github.com/allisson/bookings/internal/outbox/usecase"
)

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	c.outboxRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["outboxRepo"] = fmt.Errorf("failed to get database for outbox repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.outboxRepo = outboxRepository.NewMySQLOutboxEventRepository(db)
		case "postgres":
			c.outboxRepo = outboxRepository.NewPostgreSQLOutboxEventRepository(db)
		default:
			c.initErrors["outboxRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// OutboxProducer returns the outbox producer instance.
func (c *Container) OutboxProducer() (*outboxUsecase.Producer, error) {
	c.producerInit.Do(func() {
		outboxRepo, err := c.OutboxRepository()
		if err != nil {
			c.initErrors["outboxProducer"] = fmt.Errorf("failed to get outbox repository for producer: %w", err)
			return
		}
		c.outboxProducer = outboxUsecase.NewProducer(outboxRepo, c.Logger())
	})
	if storedErr, exists := c.initErrors["outboxProducer"]; exists {
		return nil, storedErr
	}
	return c.outboxProducer, nil
}

// OutboxDispatcher returns the outbox dispatcher instance.
func (c *Container) OutboxDispatcher() (*outboxUsecase.Dispatcher, error) {
	c.dispatcherInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["outboxDispatcher"] = fmt.Errorf("failed to get tx manager for dispatcher: %w", err)
			return
		}

		outboxRepo, err := c.OutboxRepository()
		if err != nil {
			c.initErrors["outboxDispatcher"] = fmt.Errorf("failed to get outbox repository for dispatcher: %w", err)
			return
		}

		q, err := c.Queue()
		if err != nil {
			c.initErrors["outboxDispatcher"] = fmt.Errorf("failed to get queue for dispatcher: %w", err)
			return
		}

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["outboxDispatcher"] = fmt.Errorf("failed to get metrics for dispatcher: %w", err)
			return
		}

		c.outboxDispatcher = outboxUsecase.NewDispatcher(
			outboxUsecase.DispatcherConfig{
				Interval:    c.config.OutboxPollInterval,
				BatchSize:   c.config.OutboxBatchSize,
				MaxAttempts: c.config.OutboxMaxAttempts,
			},
			txManager,
			outboxRepo,
			q,
			businessMetrics,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["outboxDispatcher"]; exists {
		return nil, storedErr
	}
	return c.outboxDispatcher, nil
}

// OutboxRegistry returns the event handler registry.
func (c *Container) OutboxRegistry() *outboxUsecase.Registry {
	c.registryInit.Do(func() {
		c.outboxRegistry = outboxUsecase.NewRegistry()
	})
	return c.outboxRegistry
}

// OutboxWorker returns the outbox worker instance.
func (c *Container) OutboxWorker() (*outboxUsecase.Worker, error) {
	c.workerInit.Do(func() {
		outboxRepo, err := c.OutboxRepository()
		if err != nil {
			c.initErrors["outboxWorker"] = fmt.Errorf("failed to get outbox repository for worker: %w", err)
			return
		}

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["outboxWorker"] = fmt.Errorf("failed to get metrics for worker: %w", err)
			return
		}

		c.outboxWorker = outboxUsecase.NewWorker(outboxRepo, c.OutboxRegistry(), businessMetrics, c.Logger())
	})
	if storedErr, exists := c.initErrors["outboxWorker"]; exists {
		return nil, storedErr
	}
	return c.outboxWorker, nil
}
