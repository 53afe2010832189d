package handler

import (
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/service"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operator actions. Routes are gated on the admin role.
type AdminHandler struct {
	wallets   service.WalletService
	payments  service.PaymentService
	reversals service.ReversalService
	logger    *slog.Logger
}

func NewAdminHandler(logger *slog.Logger, wallets service.WalletService, payments service.PaymentService, reversals service.ReversalService) *AdminHandler {
	return &AdminHandler{
		wallets:   wallets,
		payments:  payments,
		reversals: reversals,
		logger:    logger,
	}
}

// ReverseTransaction writes the compensating entry for a completed transaction
func (h *AdminHandler) ReverseTransaction(c *gin.Context) {
	id, ok := uuidParam(c, "id", "transaction ID")
	if !ok {
		return
	}
	var req ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	reversal, err := h.reversals.Reverse(c.Request.Context(), id, req.Reason)
	if err != nil {
		RespondWithDomainError(c, h.logger, "reverse_transaction", err)
		return
	}
	h.logger.Info("Transaction reversed", "transaction_id", id.String(), "reversal_id", reversal.ID.String())
	RespondCreated(c, reversal)
}

func (h *AdminHandler) RefundPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id", "payment ID")
	if !ok {
		return
	}
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	intent, err := h.payments.Refund(c.Request.Context(), id, req.Amount, req.Reason)
	if err != nil {
		RespondWithDomainError(c, h.logger, "refund_payment", err)
		return
	}
	RespondOK(c, intent)
}

// RetryPayment re-dispatches a failed intent once its backoff has elapsed
func (h *AdminHandler) RetryPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id", "payment ID")
	if !ok {
		return
	}

	intent, err := h.payments.Retry(c.Request.Context(), id)
	if err != nil {
		RespondWithDomainError(c, h.logger, "retry_payment", err)
		return
	}
	RespondOK(c, intent)
}

func (h *AdminHandler) ChangeWalletStatus(c *gin.Context) {
	ownerID, ok := uuidParam(c, "owner_id", "owner ID")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	acc, err := h.wallets.ChangeStatus(c.Request.Context(), ownerID, wallet.Status(req.Status))
	if err != nil {
		RespondWithDomainError(c, h.logger, "change_wallet_status", err)
		return
	}
	RespondOK(c, mapWalletToResponse(acc))
}
