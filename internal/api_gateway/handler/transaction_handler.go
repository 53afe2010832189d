package handler

import (
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/service"
	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	walletservice "github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// TransactionHandler serves the owner's transaction history
type TransactionHandler struct {
	history service.HistoryService
	logger  *slog.Logger
}

func NewTransactionHandler(logger *slog.Logger, history service.HistoryService) *TransactionHandler {
	return &TransactionHandler{
		history: history,
		logger:  logger,
	}
}

// List returns a filtered page of transactions, newest first
func (h *TransactionHandler) List(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}

	var params TransactionListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, bindingMessage(err))
		return
	}
	from, err := parseTimeParam(params.From, false)
	if err != nil {
		RespondBadRequest(c, "from must be a date or an RFC 3339 timestamp")
		return
	}
	to, err := parseTimeParam(params.To, true)
	if err != nil {
		RespondBadRequest(c, "to must be a date or an RFC 3339 timestamp")
		return
	}

	page, err := h.history.ListTransactions(c.Request.Context(), ownerID, walletservice.TransactionQuery{
		Type:     ledger.Type(params.Type),
		Status:   ledger.Status(params.Status),
		Category: ledger.Category(params.Category),
		From:     from,
		To:       to,
		Page:     params.Page,
		PerPage:  params.PerPage,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, "list_transactions", err)
		return
	}

	items := page.Items
	if items == nil {
		items = []*ledger.Transaction{}
	}
	RespondWithPaginatedData(c, items, page.Page, page.PerPage, page.Total)
}

// GetByID returns one of the owner's transactions, 404 for anybody else's
func (h *TransactionHandler) GetByID(c *gin.Context) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "transaction ID")
	if !ok {
		return
	}

	entry, err := h.history.GetTransaction(c.Request.Context(), ownerID, id)
	if err != nil {
		RespondWithDomainError(c, h.logger, "get_transaction", err)
		return
	}
	RespondOK(c, entry)
}

// parseTimeParam reads an optional bound. A plain date used as an upper
// bound is moved to the next midnight since to is exclusive.
func parseTimeParam(raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
