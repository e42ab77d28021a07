package app

import (
	"fmt"

	bookingRepository "github.com/allisson/bookings/internal/booking/repository"
	bookingUsecase "github.com/allisson/bookings/internal/booking/usecase"
	paymentRepository "github.com/allisson/bookings/internal/payment/repository"
	paymentService "github.com/allisson/bookings/internal/payment/service"
	paymentUsecase "github.com/allisson/bookings/internal/payment/usecase"
	promotionRepository "github.com/allisson/bookings/internal/promotion/repository"
)

// BookingRepository returns the booking repository instance.
func (c *Container) BookingRepository() (bookingUsecase.BookingRepository, error) {
	c.bookingRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["bookingRepo"] = fmt.Errorf("failed to get database for booking repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.bookingRepo = bookingRepository.NewMySQLBookingRepository(db)
		case "postgres":
			c.bookingRepo = bookingRepository.NewPostgreSQLBookingRepository(db)
		default:
			c.initErrors["bookingRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["bookingRepo"]; exists {
		return nil, storedErr
	}
	return c.bookingRepo, nil
}

// PromotionRepository returns the promotion repository instance.
func (c *Container) PromotionRepository() (bookingUsecase.PromotionRedeemer, error) {
	c.promotionRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["promotionRepo"] = fmt.Errorf("failed to get database for promotion repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.promotionRepo = promotionRepository.NewMySQLPromotionRepository(db)
		case "postgres":
			c.promotionRepo = promotionRepository.NewPostgreSQLPromotionRepository(db)
		default:
			c.initErrors["promotionRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["promotionRepo"]; exists {
		return nil, storedErr
	}
	return c.promotionRepo, nil
}

// PaymentRepository returns the payment repository instance.
func (c *Container) PaymentRepository() (paymentUsecase.PaymentRepository, error) {
	c.paymentRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["paymentRepo"] = fmt.Errorf("failed to get database for payment repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.paymentRepo = paymentRepository.NewMySQLPaymentRepository(db)
		case "postgres":
			c.paymentRepo = paymentRepository.NewPostgreSQLPaymentRepository(db)
		default:
			c.initErrors["paymentRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["paymentRepo"]; exists {
		return nil, storedErr
	}
	return c.paymentRepo, nil
}

// PaymentGateway returns the payment provider gateway.
func (c *Container) PaymentGateway() paymentService.Gateway {
	c.paymentGatewayInit.Do(func() {
		c.paymentGateway = paymentService.NewLoggingGateway(c.Logger())
	})
	return c.paymentGateway
}

// PaymentUseCase returns the payment use case instance.
func (c *Container) PaymentUseCase() (*paymentUsecase.PaymentUsecase, error) {
	c.paymentUseCaseInit.Do(func() {
		paymentRepo, err := c.PaymentRepository()
		if err != nil {
			c.initErrors["paymentUseCase"] = fmt.Errorf("failed to get payment repository for use case: %w", err)
			return
		}
		c.paymentUseCase = paymentUsecase.NewPaymentUsecase(paymentRepo, c.PaymentGateway(), c.Logger())
	})
	if storedErr, exists := c.initErrors["paymentUseCase"]; exists {
		return nil, storedErr
	}
	return c.paymentUseCase, nil
}

// BookingUseCase returns the booking use case instance.
func (c *Container) BookingUseCase() (*bookingUsecase.BookingUsecase, error) {
	c.bookingUseCaseInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["bookingUseCase"] = fmt.Errorf("failed to get tx manager for booking use case: %w", err)
			return
		}

		bookingRepo, err := c.BookingRepository()
		if err != nil {
			c.initErrors["bookingUseCase"] = fmt.Errorf("failed to get booking repository for use case: %w", err)
			return
		}

		promotionRepo, err := c.PromotionRepository()
		if err != nil {
			c.initErrors["bookingUseCase"] = fmt.Errorf("failed to get promotion repository for use case: %w", err)
			return
		}

		paymentUC, err := c.PaymentUseCase()
		if err != nil {
			c.initErrors["bookingUseCase"] = fmt.Errorf("failed to get payment use case for booking use case: %w", err)
			return
		}

		producer, err := c.OutboxProducer()
		if err != nil {
			c.initErrors["bookingUseCase"] = fmt.Errorf("failed to get outbox producer for booking use case: %w", err)
			return
		}

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["bookingUseCase"] = fmt.Errorf("failed to get metrics for booking use case: %w", err)
			return
		}

		c.bookingUseCase = bookingUsecase.NewBookingUsecase(
			txManager,
			bookingRepo,
			promotionRepo,
			paymentUC,
			producer,
			c.SagaOrchestrator(),
			businessMetrics,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["bookingUseCase"]; exists {
		return nil, storedErr
	}
	return c.bookingUseCase, nil
}
