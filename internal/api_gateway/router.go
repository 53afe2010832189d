package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/handler"
	"github.com/carebridge-wallet-ledger/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	wallets      *handler.WalletHandler
	transactions *handler.TransactionHandler
	payments     *handler.PaymentHandler
	admin        *handler.AdminHandler
}

// setupRouter configures API routes and middleware for the application.
// PIN-gated and money-moving routes share one throttle per owner.
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	auth middleware.AuthConfig,
	limiter middleware.RateLimiter,
	h handlers,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	throttle := middleware.RateLimit(limiter, "wallet", logger)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(auth, logger))
	{
		wallet := v1.Group("/wallet")
		{
			wallet.GET("", h.wallets.Get)
			wallet.GET("/balance", h.wallets.GetBalance)
			wallet.PUT("/pin", throttle, h.wallets.SetPin)
			wallet.POST("/pin/change", throttle, h.wallets.ChangePin)
			wallet.PUT("/limits", h.wallets.SetLimits)
			wallet.GET("/activity", h.wallets.ListActivity)

			wallet.GET("/transactions", h.transactions.List)
			wallet.GET("/transactions/:id", h.transactions.GetByID)

			wallet.POST("/topups", throttle, h.payments.TopUp)
			wallet.POST("/withdrawals", throttle, h.payments.Withdraw)
			wallet.POST("/transfers", throttle, h.payments.Transfer)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("/appointments", throttle, h.payments.PayAppointment)
			payments.GET("/:id", h.payments.GetByID)
			payments.POST("/:id/cancel", h.payments.Cancel)
		}

		admin := v1.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.POST("/transactions/:id/reverse", h.admin.ReverseTransaction)
			admin.POST("/payments/:id/refund", h.admin.RefundPayment)
			admin.POST("/payments/:id/retry", h.admin.RetryPayment)
			admin.PUT("/wallets/:owner_id/status", h.admin.ChangeWalletStatus)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
