package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carebridge-wallet-ledger/internal/api_gateway"
	"github.com/carebridge-wallet-ledger/internal/api_gateway/service"
	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/carebridge-wallet-ledger/internal/data/mongo"
	"github.com/carebridge-wallet-ledger/internal/data/postgres"
	"github.com/carebridge-wallet-ledger/internal/logger"
	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/carebridge-wallet-ledger/internal/platform/ratelimit"
	"github.com/carebridge-wallet-ledger/internal/platform/security"
	"github.com/carebridge-wallet-ledger/internal/wallet/components"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	// migrations run here before the pool opens
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

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	repos := components.Repositories{
		Accounts: postgres.NewAccountRepository(log, postgresDB),
		Ledger:   postgres.NewTransactionRepository(log, postgresDB),
		Payments: postgres.NewPaymentRepository(log, postgresDB),
		Outbox:   postgres.NewOutboxRepository(log, postgresDB),
		Activity: mongo.NewActivityRepository(log, mongoDB.Database()),
	}

	walletServices, err := components.CreateServices(
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

	server, err := api_gateway.NewServer(log, cfg, service.FromWallet(walletServices), ratelimit.NewLimiter(redisClient, &cfg.RateLimit))
	if err != nil {
		log.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case serverErr = <-errChan:
		log.Error("Server error occurred", "error", serverErr)
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// stop taking requests before the stores go away
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	postgresDB.Close()

	if err := redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
