// Package scheduler re-dispatches failed payment intents once their backoff elapsed.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
)

// RetryProcessor retries intents whose next_retry_at has passed
type RetryProcessor interface {
	ProcessDueRetries(ctx context.Context, limit int) (int, error)
}

// RetryScheduler polls for due retries on a fixed interval
type RetryScheduler struct {
	retries   RetryProcessor
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewRetryScheduler(cfg *config.PaymentConfig, retries RetryProcessor, logger *slog.Logger) *RetryScheduler {
	return &RetryScheduler{
		retries:   retries,
		interval:  cfg.RetryInterval,
		batchSize: cfg.RetryBatchSize,
		logger:    logger,
	}
}

// Start runs until ctx is canceled
func (s *RetryScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting payment retry scheduler",
		"interval", s.interval.String(),
		"batch_size", s.batchSize,
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Payment retry scheduler stopping due to context cancellation.")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce drains due retries in batches until a batch comes back short
func (s *RetryScheduler) runOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		retried, err := s.retries.ProcessDueRetries(ctx, s.batchSize)
		total += retried
		if err != nil {
			s.logger.Error("Failed to process due payment retries", "error", err)
			break
		}
		if retried < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Info("Retried due payments", "count", total)
	}
	return total
}
