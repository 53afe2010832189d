package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
)

// Poller drains pending outbox messages to the notification topic and the activity feed
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        EventPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	retention        time.Duration
	lastPurge        time.Time
}

// purgeEvery is the minimum gap between retention sweeps
const purgeEvery = time.Hour

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher EventPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		retention:        cfg.Retention,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
		"retention", p.retention.String(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
			if p.retention > 0 && time.Since(p.lastPurge) >= purgeEvery {
				p.purgeExpired(ctx, time.Now())
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		logger := p.logger.With("outbox_id", msg.ID, "event_type", string(msg.EventType))

		if err := p.publisher.Publish(ctx, msg); err != nil {
			logger.Error("Failed to publish outbox message",
				"current_attempts", msg.Attempts,
				"error", err,
			)

			if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				logger.Error("Failed to increment attempts for outbox message", "error", errInc)
				continue
			}

			if msg.Attempts+1 >= p.maxRetryAttempts {
				logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
					"attempts_made", msg.Attempts+1,
				)
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
					logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", errUpdate)
				}
			}
			continue
		}
		logger.Debug("Published outbox message")
	}
	return nil
}

// purgeExpired deletes delivered events older than the retention window
func (p *Poller) purgeExpired(ctx context.Context, now time.Time) {
	p.lastPurge = now
	purged, err := p.outboxRepo.PurgeProcessed(ctx, now.Add(-p.retention))
	if err != nil {
		p.logger.Error("Failed to purge processed outbox messages", "error", err)
		return
	}
	if purged > 0 {
		p.logger.Info("Purged processed outbox messages", "count", purged)
	}
}
