package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/payment_processor/service"
	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	"github.com/carebridge-wallet-ledger/internal/platform/messaging/producers"
)

// GatewayEventHandler handles payment gateway callbacks read from Kafka
type GatewayEventHandler struct {
	processor service.EventProcessor
	producer  producers.DeadLetterParker
	logger    *slog.Logger
}

func NewGatewayEventHandler(
	logger *slog.Logger,
	processor service.EventProcessor,
	producer producers.DeadLetterParker,
) *GatewayEventHandler {
	return &GatewayEventHandler{
		processor: processor,
		producer:  producer,
		logger:    logger,
	}
}

// HandleMessage applies one callback. A nil return commits the offset.
func (h *GatewayEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	event, err := gateway.DecodeEvent(value)
	if err != nil {
		h.logger.Error("Failed to decode gateway event from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		return h.deadLetter(ctx, producers.DeadLetter{
			Key:   string(key),
			Value: value,
			Stage: producers.StageDecode,
		}, err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received gateway event",
		"reference", event.Reference,
		"status", string(event.Status),
		"external_id", event.ExternalID,
	)

	if err := h.processor.ProcessEvent(ctx, event, value); err != nil {
		if errors.Is(err, service.ErrUnprocessable) {
			return h.deadLetter(ctx, producers.DeadLetter{
				Key:       string(key),
				Value:     value,
				Stage:     producers.StageApply,
				Reference: event.Reference,
			}, err)
		}
		logger.Error("Failed to process gateway event",
			"reference", event.Reference,
			"error", err,
		)
		return fmt.Errorf("processing gateway event %s failed: %w", event.Reference, err)
	}

	return nil
}

// deadLetter parks a message that can never be applied. The offset is only
// committed when the DLQ write succeeded.
func (h *GatewayEventHandler) deadLetter(ctx context.Context, dl producers.DeadLetter, cause error) error {
	if h.producer == nil {
		return cause
	}

	dl.Reason = cause.Error()
	if err := h.producer.Park(ctx, dl); err != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"original_error", cause,
			"message_key", dl.Key,
		)
		return cause
	}

	h.logger.Info("Published unprocessable gateway event to DLQ",
		"message_key", dl.Key,
		"stage", string(dl.Stage),
		"reason", dl.Reason,
	)
	return nil
}
