package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const intentColumns = `id, owner_id, account_id, appointment_id, transaction_id, external_transaction_id,
		ledger_transaction_id, payment_type, payment_method,
		amount, platform_fee, payment_gateway_fee, net_amount, status,
		failure_reason, gateway_response, refund_amount, refund_reason,
		bank_code, bank_account_number, bank_account_name,
		expired_at, paid_at, refunded_at, retry_count, max_retry, next_retry_at, auto_retry,
		created_at, updated_at`

const (
	insertIntentQuery = `
		INSERT INTO payment_intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	selectIntentByIDQuery = `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE id = $1
	`
	selectIntentByRefQuery = `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE transaction_id = $1
	`
	lockIntentQuery = `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE id = $1
		FOR UPDATE
	`
	lockIntentByRefQuery = `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE transaction_id = $1
		FOR UPDATE
	`
	selectDueRetriesQuery = `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE status = 'failed' AND auto_retry AND next_retry_at IS NOT NULL AND next_retry_at <= $1
		ORDER BY next_retry_at ASC
		LIMIT $2
	`
	updateIntentQuery = `
		UPDATE payment_intents
		SET external_transaction_id = $1, ledger_transaction_id = $2, status = $3,
			failure_reason = $4, gateway_response = $5, refund_amount = $6, refund_reason = $7,
			paid_at = $8, refunded_at = $9, retry_count = $10, next_retry_at = $11, updated_at = $12
		WHERE id = $13
	`
)

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment intent repository
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *PaymentRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &PaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new payment intent
func (r *PaymentRepository) Create(ctx context.Context, intent *payment.Intent) error {
	var bankCode, bankNumber, bankName *string
	if intent.BankAccount != nil {
		bankCode = &intent.BankAccount.BankCode
		bankNumber = &intent.BankAccount.AccountNumber
		bankName = &intent.BankAccount.AccountName
	}

	result, err := r.querier.Exec(ctx, insertIntentQuery,
		intent.ID,
		intent.OwnerID,
		intent.AccountID,
		intent.AppointmentID,
		intent.TransactionID,
		intent.ExternalTransactionID,
		intent.LedgerTransactionID,
		intent.Type,
		intent.Method,
		intent.Amount,
		intent.PlatformFee,
		intent.GatewayFee,
		intent.NetAmount,
		intent.Status,
		intent.FailureReason,
		intent.GatewayResponse,
		intent.RefundAmount,
		intent.RefundReason,
		bankCode,
		bankNumber,
		bankName,
		intent.ExpiredAt,
		intent.PaidAt,
		intent.RefundedAt,
		intent.RetryCount,
		intent.MaxRetry,
		intent.NextRetryAt,
		intent.AutoRetry,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return payment.ErrDuplicateIntent{TransactionID: intent.TransactionID}
		}
		r.logger.Error("Failed to create payment intent",
			"transaction_id", intent.TransactionID,
			"owner_id", intent.OwnerID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return payment.ErrDuplicateIntent{TransactionID: intent.TransactionID}
	}

	return nil
}

// GetByID retrieves an intent by its row id
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Intent, error) {
	return r.getOne(ctx, selectIntentByIDQuery, id.String(), id)
}

// GetByTransactionID retrieves an intent by its public reference
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Intent, error) {
	return r.getOne(ctx, selectIntentByRefQuery, transactionID, transactionID)
}

// LockForUpdate obtains a row lock on the intent. Must run inside a transaction.
func (r *PaymentRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*payment.Intent, error) {
	return r.getOne(ctx, lockIntentQuery, id.String(), id)
}

// LockByTransactionID locks the intent a gateway callback refers to
func (r *PaymentRepository) LockByTransactionID(ctx context.Context, transactionID string) (*payment.Intent, error) {
	return r.getOne(ctx, lockIntentByRefQuery, transactionID, transactionID)
}

// ListDueRetries returns failed intents whose scheduled retry is due at now, oldest first
func (r *PaymentRepository) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*payment.Intent, error) {
	rows, err := r.querier.Query(ctx, selectDueRetriesQuery, now, limit)
	if err != nil {
		r.logger.Error("Failed to list due payment retries", "error", err)
		return nil, fmt.Errorf("failed to list due payment retries: %w", err)
	}
	defer rows.Close()

	intents := make([]*payment.Intent, 0)
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			r.logger.Error("Failed to scan payment intent", "error", err)
			return nil, fmt.Errorf("failed to scan payment intent: %w", err)
		}
		intents = append(intents, intent)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over payment intents", "error", err)
		return nil, fmt.Errorf("error iterating over payment intents: %w", err)
	}

	return intents, nil
}

func (r *PaymentRepository) getOne(ctx context.Context, query, ref string, arg interface{}) (*payment.Intent, error) {
	intent, err := scanIntent(r.querier.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrIntentNotFound{Ref: ref}
		}
		r.logger.Error("Failed to get payment intent", "ref", ref, "error", err)
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return intent, nil
}

// Update persists the mutable lifecycle columns of an intent
func (r *PaymentRepository) Update(ctx context.Context, intent *payment.Intent) error {
	result, err := r.querier.Exec(ctx, updateIntentQuery,
		intent.ExternalTransactionID,
		intent.LedgerTransactionID,
		intent.Status,
		intent.FailureReason,
		intent.GatewayResponse,
		intent.RefundAmount,
		intent.RefundReason,
		intent.PaidAt,
		intent.RefundedAt,
		intent.RetryCount,
		intent.NextRetryAt,
		intent.UpdatedAt,
		intent.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update payment intent",
			"transaction_id", intent.TransactionID,
			"status", string(intent.Status),
			"error", err,
		)
		return fmt.Errorf("failed to update payment intent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrIntentNotFound{Ref: intent.TransactionID}
	}
	return nil
}

func scanIntent(row pgx.Row) (*payment.Intent, error) {
	var (
		intent                         payment.Intent
		bankCode, bankNumber, bankName *string
	)
	err := row.Scan(
		&intent.ID,
		&intent.OwnerID,
		&intent.AccountID,
		&intent.AppointmentID,
		&intent.TransactionID,
		&intent.ExternalTransactionID,
		&intent.LedgerTransactionID,
		&intent.Type,
		&intent.Method,
		&intent.Amount,
		&intent.PlatformFee,
		&intent.GatewayFee,
		&intent.NetAmount,
		&intent.Status,
		&intent.FailureReason,
		&intent.GatewayResponse,
		&intent.RefundAmount,
		&intent.RefundReason,
		&bankCode,
		&bankNumber,
		&bankName,
		&intent.ExpiredAt,
		&intent.PaidAt,
		&intent.RefundedAt,
		&intent.RetryCount,
		&intent.MaxRetry,
		&intent.NextRetryAt,
		&intent.AutoRetry,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bankNumber != nil {
		intent.BankAccount = &payment.BankAccount{AccountNumber: *bankNumber}
		if bankCode != nil {
			intent.BankAccount.BankCode = *bankCode
		}
		if bankName != nil {
			intent.BankAccount.AccountName = *bankName
		}
	}
	return &intent, nil
}
