package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	walletservice "github.com/carebridge-wallet-ledger/internal/wallet/service"
)

// ErrUnprocessable marks callbacks that will never apply, such as an unknown
// reference or an intent that already left the pending states
var ErrUnprocessable = errors.New("gateway event cannot be applied")

// ProcessingService hands gateway callbacks to the payment use cases
type ProcessingService struct {
	payments GatewayEventService
	logger   *slog.Logger
}

func NewProcessingService(payments GatewayEventService, logger *slog.Logger) *ProcessingService {
	return &ProcessingService{
		payments: payments,
		logger:   logger,
	}
}

// ProcessEvent applies event. Domain rejections are wrapped in ErrUnprocessable,
// anything else is returned as is so the message is redelivered.
func (s *ProcessingService) ProcessEvent(ctx context.Context, event *gateway.Event, raw []byte) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	intent, err := s.payments.HandleGatewayEvent(ctx, walletservice.GatewayEvent{
		TransactionID: event.Reference,
		ExternalID:    event.ExternalID,
		Success:       event.Success(),
		Reason:        event.Reason,
		Raw:           json.RawMessage(raw),
	})
	if err != nil {
		if kind := shared.KindOf(err); kind != "" {
			logger.Warn("Gateway event rejected",
				"reference", event.Reference,
				"kind", string(kind),
				"error", err,
			)
			return fmt.Errorf("%w: %w", ErrUnprocessable, err)
		}
		return fmt.Errorf("applying gateway event %s failed: %w", event.Reference, err)
	}

	logger.Info("Gateway event applied",
		"reference", event.Reference,
		"intent_id", intent.ID.String(),
		"status", string(intent.Status),
	)
	return nil
}
