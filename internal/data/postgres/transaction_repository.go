package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const transactionColumns = `id, account_id, owner_id, transaction_id, reference_id, reference_type,
		type, direction, category, status,
		amount, fee_amount, tax_amount, net_amount, balance_before, balance_after,
		description, failure_reason, reversal_transaction_id, created_at, processed_at`

const (
	insertTransactionQuery = `
		INSERT INTO ledger_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	selectTransactionByIDQuery = `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE id = $1
	`
	selectTransactionByRefQuery = `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE transaction_id = $1
	`
	lockTransactionQuery = `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE id = $1
		FOR UPDATE
	`
	finalizeTransactionQuery = `
		UPDATE ledger_transactions
		SET status = $1, fee_amount = $2, tax_amount = $3, net_amount = $4,
			balance_before = $5, balance_after = $6, failure_reason = $7, processed_at = $8
		WHERE id = $9 AND status = 'pending'
	`
	markReversedQuery = `
		UPDATE ledger_transactions
		SET status = 'reversed', reversal_transaction_id = $1
		WHERE id = $2 AND status = 'completed' AND reversal_transaction_id IS NULL
	`
)

// TransactionRepository implements the ledger.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL ledger repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *TransactionRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends t to the log
func (r *TransactionRepository) Create(ctx context.Context, t *ledger.Transaction) error {
	result, err := r.querier.Exec(ctx, insertTransactionQuery,
		t.ID,
		t.AccountID,
		t.OwnerID,
		t.TransactionID,
		t.ReferenceID,
		t.ReferenceType,
		t.Type,
		t.Direction,
		t.Category,
		t.Status,
		t.Amount,
		t.FeeAmount,
		t.TaxAmount,
		t.NetAmount,
		t.BalanceBefore,
		t.BalanceAfter,
		t.Description,
		t.FailureReason,
		t.ReversalTransactionID,
		t.CreatedAt,
		t.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ledger.ErrDuplicateTransactionID{TransactionID: t.TransactionID}
		}
		r.logger.Error("Failed to create transaction",
			"transaction_id", t.TransactionID,
			"account_id", t.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	// a reference clash leaves the surrounding transaction usable for a retry
	if result.RowsAffected() == 0 {
		return ledger.ErrDuplicateTransactionID{TransactionID: t.TransactionID}
	}

	return nil
}

// GetByID retrieves a transaction by its row id
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	t, err := scanTransaction(r.querier.QueryRow(ctx, selectTransactionByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound{ID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// GetByTransactionID retrieves a transaction by its public reference
func (r *TransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	t, err := scanTransaction(r.querier.QueryRow(ctx, selectTransactionByRefQuery, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound{}
		}
		r.logger.Error("Failed to get transaction by reference", "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("failed to get transaction by reference: %w", err)
	}
	return t, nil
}

// LockForUpdate obtains a row lock on the transaction. Must run inside a transaction.
func (r *TransactionRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	t, err := scanTransaction(r.querier.QueryRow(ctx, lockTransactionQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound{ID: id}
		}
		r.logger.Error("Failed to lock transaction for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock transaction for update: %w", err)
	}
	return t, nil
}

// Finalize writes the terminal state of a pending row. Rows that already left
// pending are never touched, which keeps committed snapshots immutable.
func (r *TransactionRepository) Finalize(ctx context.Context, t *ledger.Transaction) error {
	result, err := r.querier.Exec(ctx, finalizeTransactionQuery,
		t.Status,
		t.FeeAmount,
		t.TaxAmount,
		t.NetAmount,
		t.BalanceBefore,
		t.BalanceAfter,
		t.FailureReason,
		t.ProcessedAt,
		t.ID,
	)
	if err != nil {
		r.logger.Error("Failed to finalize transaction",
			"id", t.ID.String(),
			"status", string(t.Status),
			"error", err,
		)
		return fmt.Errorf("failed to finalize transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ledger.ErrStaleTransaction{ID: t.ID}
	}
	return nil
}

// MarkReversed links a completed row to its reversal and flips it to reversed
func (r *TransactionRepository) MarkReversed(ctx context.Context, t *ledger.Transaction) error {
	if t.ReversalTransactionID == nil {
		return fmt.Errorf("transaction %s has no reversal", t.ID)
	}

	result, err := r.querier.Exec(ctx, markReversedQuery, *t.ReversalTransactionID, t.ID)
	if err != nil {
		r.logger.Error("Failed to mark transaction reversed", "id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to mark transaction reversed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ledger.ErrStaleTransaction{ID: t.ID}
	}
	return nil
}

// List returns transactions of one account, newest first
func (r *TransactionRepository) List(ctx context.Context, filter ledger.Filter) ([]*ledger.Transaction, error) {
	where, args := transactionFilterClause(filter)
	query := "SELECT " + transactionColumns + " FROM ledger_transactions " + where +
		" ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "account_id", filter.AccountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*ledger.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transactions", "error", err)
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return transactions, nil
}

// Count returns the number of transactions matching filter, ignoring pagination
func (r *TransactionRepository) Count(ctx context.Context, filter ledger.Filter) (int64, error) {
	where, args := transactionFilterClause(filter)
	query := "SELECT COUNT(*) FROM ledger_transactions " + where

	var total int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count transactions", "account_id", filter.AccountID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return total, nil
}

func transactionFilterClause(filter ledger.Filter) (string, []interface{}) {
	conditions := []string{"account_id = $1"}
	args := []interface{}{filter.AccountID}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, cond+" $"+strconv.Itoa(len(args)))
	}

	if filter.Type != "" {
		add("type =", filter.Type)
	}
	if filter.Status != "" {
		add("status =", filter.Status)
	}
	if filter.Category != "" {
		add("category =", filter.Category)
	}
	if filter.From != nil {
		add("created_at >=", *filter.From)
	}
	if filter.To != nil {
		add("created_at <", *filter.To)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var t ledger.Transaction
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.OwnerID,
		&t.TransactionID,
		&t.ReferenceID,
		&t.ReferenceType,
		&t.Type,
		&t.Direction,
		&t.Category,
		&t.Status,
		&t.Amount,
		&t.FeeAmount,
		&t.TaxAmount,
		&t.NetAmount,
		&t.BalanceBefore,
		&t.BalanceAfter,
		&t.Description,
		&t.FailureReason,
		&t.ReversalTransactionID,
		&t.CreatedAt,
		&t.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
