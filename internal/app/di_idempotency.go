package app

import (
	"fmt"

	idempotencyRepository "github.com/allisson/bookings/internal/idempotency/repository"
	idempotencyUsecase "github.com/allisson/bookings/internal/idempotency/usecase"
)

// IdempotencyRepository returns the idempotency record repository instance.
func (c *Container) IdempotencyRepository() (idempotencyUsecase.IdempotencyRepository, error) {
	c.idempotencyRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["idempotencyRepo"] = fmt.Errorf("failed to get database for idempotency repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.idempotencyRepo = idempotencyRepository.NewMySQLIdempotencyRepository(db)
		case "postgres":
			c.idempotencyRepo = idempotencyRepository.NewPostgreSQLIdempotencyRepository(db)
		default:
			c.initErrors["idempotencyRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["idempotencyRepo"]; exists {
		return nil, storedErr
	}
	return c.idempotencyRepo, nil
}

// IdempotencyUseCase returns the idempotency use case instance.
func (c *Container) IdempotencyUseCase() (*idempotencyUsecase.IdempotencyUsecase, error) {
	c.idempotencyUseCaseInit.Do(func() {
		repo, err := c.IdempotencyRepository()
		if err != nil {
			c.initErrors["idempotencyUseCase"] = fmt.Errorf("failed to get idempotency repository for use case: %w", err)
			return
		}
		c.idempotencyUseCase = idempotencyUsecase.NewIdempotencyUsecase(repo, c.config.IdempotencyTTL, c.Logger())
	})
	if storedErr, exists := c.initErrors["idempotencyUseCase"]; exists {
		return nil, storedErr
	}
	return c.idempotencyUseCase, nil
}
