package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/handler"
	"github.com/carebridge-wallet-ledger/internal/api_gateway/middleware"
	"github.com/carebridge-wallet-ledger/internal/api_gateway/service"
	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/gin-gonic/gin"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer wires the wallet handlers behind authentication and rate limiting
func NewServer(log *slog.Logger, cfg *config.Config, services service.Services, limiter middleware.RateLimiter) (*Server, error) {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handler.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register request validators: %w", err)
	}

	httpRouter := gin.New()

	setupRouter(log, httpRouter,
		middleware.AuthConfig{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer},
		limiter,
		handlers{
			wallets:      handler.NewWalletHandler(log, services.Wallets, services.History),
			transactions: handler.NewTransactionHandler(log, services.History),
			payments:     handler.NewPaymentHandler(log, services.Payments, services.Transfers),
			admin:        handler.NewAdminHandler(log, services.Wallets, services.Payments, services.Reversals),
		},
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}, nil
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
