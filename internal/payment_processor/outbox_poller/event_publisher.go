package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/activity"
	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/platform/messaging/producers"
)

// EventPublisher delivers one outbox message
type EventPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// EventPublisherImpl projects the message into the owner's activity feed, then
// notifies the owner through Kafka. A retried message is projected at most once
// since the feed is keyed by outbox id.
type EventPublisherImpl struct {
	outboxRepo   outbox.Repository
	activityRepo activity.Repository
	notifier     producers.Notifier
	clock        func() time.Time
	logger       *slog.Logger
}

func NewEventPublisher(
	outboxRepo outbox.Repository,
	activityRepo activity.Repository,
	notifier producers.Notifier,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo:   outboxRepo,
		activityRepo: activityRepo,
		notifier:     notifier,
		clock:        func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
}

// Publish delivers message and marks it PROCESSED
func (p *EventPublisherImpl) Publish(ctx context.Context, message *outbox.Message) error {
	logger := p.logger.With("outbox_id", message.ID, "event_type", string(message.EventType))

	item, err := activity.FromMessage(message, p.clock())
	if err != nil {
		logger.Error("Failed to project outbox payload", "error", err)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "update_error", updateErr)
		}
		return err
	}

	if err := p.activityRepo.Append(ctx, item); err != nil {
		return fmt.Errorf("failed to append activity for outbox %d: %w", message.ID, err)
	}

	if err := p.notifier.Notify(ctx, message.OwnerID.String(), message.EventType, message.Payload); err != nil {
		return fmt.Errorf("failed to notify owner for outbox %d: %w", message.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("outbox %d delivered, but failed to mark it as PROCESSED: %w", message.ID, err)
	}

	logger.Info("Outbox message delivered", "owner_id", message.OwnerID.String())
	return nil
}
