package handler

import (
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/service"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	walletservice "github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler moves money in and out of the owner's wallet
type PaymentHandler struct {
	payments  service.PaymentService
	transfers service.TransferService
	logger    *slog.Logger
}

func NewPaymentHandler(logger *slog.Logger, payments service.PaymentService, transfers service.TransferService) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		transfers: transfers,
		logger:    logger,
	}
}

// TopUp starts a gateway charge that credits the wallet once it settles
func (h *PaymentHandler) TopUp(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	intent, err := h.payments.TopUp(c.Request.Context(), walletservice.TopUpRequest{
		OwnerID: ownerID,
		Amount:  req.Amount,
		Method:  payment.Method(req.Method),
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, "topup", err)
		return
	}
	respondIntent(c, intent)
}

// Withdraw holds the amount and asks the gateway for a payout
func (h *PaymentHandler) Withdraw(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	intent, err := h.payments.Withdraw(c.Request.Context(), walletservice.WithdrawRequest{
		OwnerID: ownerID,
		Amount:  req.Amount,
		BankAccount: payment.BankAccount{
			BankCode:      req.BankAccount.BankCode,
			AccountNumber: req.BankAccount.AccountNumber,
			AccountName:   req.BankAccount.AccountName,
		},
		Pin: req.Pin,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, "withdraw", err)
		return
	}
	respondIntent(c, intent)
}

// Transfer sends funds to another owner. Only the sender's side is returned.
func (h *PaymentHandler) Transfer(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}
	recipient, err := uuid.Parse(req.RecipientOwnerID)
	if err != nil {
		RespondBadRequest(c, "recipient_owner_id must be a valid id")
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), walletservice.TransferRequest{
		SenderOwnerID:    ownerID,
		RecipientOwnerID: recipient,
		Amount:           req.Amount,
		Pin:              req.Pin,
		Note:             req.Note,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, "transfer", err)
		return
	}
	RespondCreated(c, result.Debit)
}

// PayAppointment pays a consultation from the wallet balance
func (h *PaymentHandler) PayAppointment(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	var req AppointmentPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	intent, err := h.payments.PayAppointment(c.Request.Context(), walletservice.AppointmentPaymentRequest{
		OwnerID:       ownerID,
		AppointmentID: req.AppointmentID,
		Amount:        req.Amount,
		PlatformFee:   req.PlatformFee,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, "pay_appointment", err)
		return
	}
	respondIntent(c, intent)
}

func (h *PaymentHandler) GetByID(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "payment ID")
	if !ok {
		return
	}

	intent, err := h.payments.GetPayment(c.Request.Context(), ownerID, id)
	if err != nil {
		RespondWithDomainError(c, h.logger, "get_payment", err)
		return
	}
	RespondOK(c, intent)
}

// Cancel abandons an intent the gateway has not settled yet
func (h *PaymentHandler) Cancel(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "payment ID")
	if !ok {
		return
	}

	intent, err := h.payments.Cancel(c.Request.Context(), ownerID, id)
	if err != nil {
		RespondWithDomainError(c, h.logger, "cancel_payment", err)
		return
	}
	RespondOK(c, intent)
}

// respondIntent answers 201 for settled intents and 202 while the gateway is still working
func respondIntent(c *gin.Context, intent *payment.Intent) {
	if intent.Status == payment.StatusCompleted {
		RespondCreated(c, intent)
		return
	}
	RespondAccepted(c, intent)
}
