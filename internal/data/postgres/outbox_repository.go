package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

const (
	insertOutboxQuery = `
		INSERT INTO wallet_outbox (event_type, aggregate_id, owner_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	selectPendingOutboxQuery = `
		SELECT id, event_type, aggregate_id, owner_id, payload, status, attempts, created_at, last_attempt_at
		FROM wallet_outbox
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`
	updateOutboxStatusQuery = `
		UPDATE wallet_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`
	incrementOutboxAttemptsQuery = `
		UPDATE wallet_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2
	`
	purgeProcessedOutboxQuery = `
		DELETE FROM wallet_outbox
		WHERE status = $1 AND created_at < $2
	`
)

// OutboxRepository implements the outbox.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the event commits
// together with the balance change it describes.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new outbox message in pending status.
// The message will be picked up by the outbox poller for processing.
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	err := r.querier.QueryRow(ctx, insertOutboxQuery,
		message.EventType,
		message.AggregateID,
		message.OwnerID,
		message.Payload,
		message.Status,
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		r.logger.Error("Failed to create outbox message",
			"event_type", string(message.EventType),
			"aggregate_id", message.AggregateID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// GetPending retrieves a batch of pending outbox messages in FIFO order
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, selectPendingOutboxQuery, shared.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		var message outbox.Message
		err := rows.Scan(
			&message.ID,
			&message.EventType,
			&message.AggregateID,
			&message.OwnerID,
			&message.Payload,
			&message.Status,
			&message.Attempts,
			&message.CreatedAt,
			&message.LastAttemptAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}

	return messages, nil
}

// UpdateStatus updates the message status and last attempt timestamp.
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	result, err := r.querier.Exec(ctx, updateOutboxStatusQuery, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update outbox message status",
			"id", id,
			"status", string(status),
			"error", err,
		)
		return fmt.Errorf("failed to update outbox message status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// IncrementAttempts increments the retry counter and updates last attempt time.
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	result, err := r.querier.Exec(ctx, incrementOutboxAttemptsQuery, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to increment outbox message attempts",
			"id", id,
			"error", err,
		)
		return fmt.Errorf("failed to increment outbox message attempts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// PurgeProcessed removes delivered events older than cutoff. Pending and
// failed rows are kept for inspection.
func (r *OutboxRepository) PurgeProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.querier.Exec(ctx, purgeProcessedOutboxQuery, shared.OutboxStatusProcessed, cutoff)
	if err != nil {
		r.logger.Error("Failed to purge processed outbox messages",
			"cutoff", cutoff,
			"error", err,
		)
		return 0, fmt.Errorf("failed to purge processed outbox messages: %w", err)
	}

	return result.RowsAffected(), nil
}
