package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/carebridge-wallet-ledger/internal/data/mongo"
	"github.com/carebridge-wallet-ledger/internal/data/postgres"
	"github.com/carebridge-wallet-ledger/internal/logger"
	"github.com/carebridge-wallet-ledger/internal/payment_processor/consumer"
	"github.com/carebridge-wallet-ledger/internal/payment_processor/outbox_poller"
	"github.com/carebridge-wallet-ledger/internal/payment_processor/scheduler"
	"github.com/carebridge-wallet-ledger/internal/payment_processor/service"
	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	"github.com/carebridge-wallet-ledger/internal/platform/messaging/consumers"
	"github.com/carebridge-wallet-ledger/internal/platform/messaging/producers"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/carebridge-wallet-ledger/internal/platform/security"
	"github.com/carebridge-wallet-ledger/internal/wallet/components"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("payment_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Payment Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	activityRepo := mongo.NewActivityRepository(log, mongoDB.Database())
	if indexed, ok := activityRepo.(*mongo.ActivityRepository); ok {
		if err := indexed.EnsureIndexes(appCtx); err != nil {
			log.Error("Failed to ensure activity indexes", "error", err)
			os.Exit(1)
		}
	}

	repos := components.Repositories{
		Accounts: postgres.NewAccountRepository(log, postgresDB),
		Ledger:   postgres.NewTransactionRepository(log, postgresDB),
		Payments: postgres.NewPaymentRepository(log, postgresDB),
		Outbox:   postgres.NewOutboxRepository(log, postgresDB),
		Activity: activityRepo,
	}

	services, err := components.CreateServices(
		postgresDB,
		repos,
		gateway.NewHTTPClient(&cfg.Gateway, log.With("component", "gateway")),
		security.NewPinHasher(0),
		nil,
		log,
		cfg,
	)
	if err != nil {
		log.Error("Failed to create wallet services", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterParker
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	notifier, err := producers.NewNotificationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification Kafka producer", "error", err)
		os.Exit(1)
	}

	workerPool, err := service.NewWorkerPoolProcessingService(
		service.NewProcessingService(services.Payments, log.With("component", "processing_service")),
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to create worker pool", "error", err)
		os.Exit(1)
	}

	gatewayEventHandler := consumer.NewGatewayEventHandler(log, workerPool, deadLetters)

	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		repos.Outbox,
		outbox_poller.NewEventPublisher(repos.Outbox, activityRepo, notifier, log),
		log,
	)

	retryScheduler := scheduler.NewRetryScheduler(&cfg.Payment, services.Payments, log)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	if err := kafkaConsumer.Subscribe(appCtx, gatewayEventHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()
	go func() {
		defer wg.Done()
		retryScheduler.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case serviceErr = <-errChan:
		log.Error("Service error occurred", "error", serviceErr)
	}

	cancelAppCtx()
	workerPool.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}
	if err := notifier.Close(); err != nil {
		log.Error("Error closing notification Kafka producer", "error", err)
	}
	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Payment Processor shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Payment Processor shutdown completed successfully")
}
