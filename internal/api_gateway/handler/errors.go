package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/middleware"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

var statusByKind = map[shared.ErrorKind]int{
	shared.KindInvalidAmount:     http.StatusBadRequest,
	shared.KindSelfTransfer:      http.StatusBadRequest,
	shared.KindInvalidRequest:    http.StatusBadRequest,
	shared.KindInvalidPin:        http.StatusUnauthorized,
	shared.KindPinNotSet:         http.StatusForbidden,
	shared.KindNotFound:          http.StatusNotFound,
	shared.KindInvalidState:      http.StatusConflict,
	shared.KindNotReversible:     http.StatusConflict,
	shared.KindInsufficientFunds: http.StatusUnprocessableEntity,
	shared.KindLimitExceeded:     http.StatusUnprocessableEntity,
	shared.KindPinLocked:         http.StatusLocked,
	shared.KindGatewayError:      http.StatusFailedDependency,
}

// StatusForKind maps a wallet error kind to its HTTP status
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithDomainError writes typed wallet failures with their kind as code.
// Anything untyped is logged and hidden behind a 500.
func RespondWithDomainError(c *gin.Context, logger *slog.Logger, op string, err error) {
	kind := shared.KindOf(err)
	if kind == "" {
		logger.Error("Request failed", "operation", op, "error", err, "correlation_id", middleware.GetCorrelationID(c))
		RespondInternalError(c)
		return
	}

	message := string(kind)
	var typed *shared.Error
	if errors.As(err, &typed) && typed.Message != "" {
		message = typed.Message
	}
	logger.Info("Request rejected", "operation", op, "kind", string(kind), "error", err)
	RespondWithError(c, StatusForKind(kind), string(kind), message)
}
