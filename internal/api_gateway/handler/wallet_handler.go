package handler

import (
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/service"
	"github.com/carebridge-wallet-ledger/internal/domain/activity"
	"github.com/gin-gonic/gin"
)

// WalletHandler serves the owner's wallet settings and balance
type WalletHandler struct {
	wallets service.WalletService
	history service.HistoryService
	logger  *slog.Logger
}

func NewWalletHandler(logger *slog.Logger, wallets service.WalletService, history service.HistoryService) *WalletHandler {
	return &WalletHandler{
		wallets: wallets,
		history: history,
		logger:  logger,
	}
}

// Get returns the wallet, opening it on first access
func (h *WalletHandler) Get(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}

	acc, err := h.wallets.GetWallet(c.Request.Context(), ownerID)
	if err != nil {
		RespondWithDomainError(c, h.logger, "get_wallet", err)
		return
	}
	RespondOK(c, mapWalletToResponse(acc))
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}

	acc, err := h.wallets.GetWallet(c.Request.Context(), ownerID)
	if err != nil {
		RespondWithDomainError(c, h.logger, "get_balance", err)
		return
	}
	RespondOK(c, mapBalanceToResponse(acc))
}

// SetPin sets the first PIN of a wallet
func (h *WalletHandler) SetPin(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	var req SetPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	if err := h.wallets.SetPin(c.Request.Context(), ownerID, req.Pin); err != nil {
		RespondWithDomainError(c, h.logger, "set_pin", err)
		return
	}
	RespondNoContent(c)
}

func (h *WalletHandler) ChangePin(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	var req ChangePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	if err := h.wallets.ChangePin(c.Request.Context(), ownerID, req.CurrentPin, req.NewPin); err != nil {
		RespondWithDomainError(c, h.logger, "change_pin", err)
		return
	}
	RespondNoContent(c)
}

func (h *WalletHandler) SetLimits(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	var req SetLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}

	acc, err := h.wallets.SetLimits(c.Request.Context(), ownerID, req.DailyLimit, req.MonthlyLimit)
	if err != nil {
		RespondWithDomainError(c, h.logger, "set_limits", err)
		return
	}
	RespondOK(c, mapWalletToResponse(acc))
}

// ListActivity pages through the owner's notification feed
func (h *WalletHandler) ListActivity(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	page, err := h.history.ListActivity(c.Request.Context(), ownerID, pagination.Page, pagination.PerPage)
	if err != nil {
		RespondWithDomainError(c, h.logger, "list_activity", err)
		return
	}
	items := page.Items
	if items == nil {
		items = []*activity.Activity{}
	}
	RespondWithPaginatedData(c, items, page.Page, page.PerPage, page.Total)
}
