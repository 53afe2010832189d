// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository runs against either the pool or a transaction so that
// multi-row wallet operations commit atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, owner_id, balance, pending_balance, frozen_balance,
		total_earned, total_spent, total_withdrawn, status,
		pin_hash, pin_attempts, pin_locked_until,
		daily_limit, monthly_limit, daily_spent, monthly_spent,
		last_daily_reset, last_monthly_reset, low_balance_threshold,
		version, created_at, updated_at`

const (
	insertAccountQuery = `
		INSERT INTO wallet_accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (owner_id) DO NOTHING
	`
	selectAccountByIDQuery = `
		SELECT ` + accountColumns + `
		FROM wallet_accounts
		WHERE id = $1
	`
	selectAccountByOwnerQuery = `
		SELECT ` + accountColumns + `
		FROM wallet_accounts
		WHERE owner_id = $1
	`
	lockAccountQuery = `
		SELECT ` + accountColumns + `
		FROM wallet_accounts
		WHERE id = $1
		FOR UPDATE
	`
	updateAccountQuery = `
		UPDATE wallet_accounts
		SET balance = $1, pending_balance = $2, frozen_balance = $3,
			total_earned = $4, total_spent = $5, total_withdrawn = $6, status = $7,
			pin_hash = $8, pin_attempts = $9, pin_locked_until = $10,
			daily_limit = $11, monthly_limit = $12, daily_spent = $13, monthly_spent = $14,
			last_daily_reset = $15, last_monthly_reset = $16, low_balance_threshold = $17,
			version = version + 1, updated_at = $18
		WHERE id = $19 AND version = $20
	`
)

// AccountRepository implements the wallet.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL wallet repository.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *AccountRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// EnsureForOwner inserts acc unless the owner already has a wallet, then
// returns whichever row is stored. Concurrent first accesses converge on one row.
func (r *AccountRepository) EnsureForOwner(ctx context.Context, acc *wallet.Account) (*wallet.Account, error) {
	_, err := r.querier.Exec(ctx, insertAccountQuery,
		acc.ID,
		acc.OwnerID,
		acc.Balance,
		acc.PendingBalance,
		acc.FrozenBalance,
		acc.TotalEarned,
		acc.TotalSpent,
		acc.TotalWithdrawn,
		acc.Status,
		acc.PinHash,
		acc.PinAttempts,
		acc.PinLockedUntil,
		acc.DailyLimit,
		acc.MonthlyLimit,
		acc.DailySpent,
		acc.MonthlySpent,
		acc.LastDailyReset,
		acc.LastMonthlyReset,
		acc.LowBalanceThreshold,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create wallet", "owner_id", acc.OwnerID.String(), "error", err)
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return r.GetByOwnerID(ctx, acc.OwnerID)
}

// GetByID retrieves a wallet by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, selectAccountByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrAccountNotFound{ID: id}
		}
		r.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return acc, nil
}

// GetByOwnerID retrieves the wallet of an owner
func (r *AccountRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*wallet.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, selectAccountByOwnerQuery, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrAccountNotFound{OwnerID: ownerID}
		}
		r.logger.Error("Failed to get wallet by owner", "owner_id", ownerID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet by owner: %w", err)
	}
	return acc, nil
}

// LockForUpdate obtains a pessimistic lock on the wallet and returns its current state.
// Must run inside a transaction.
func (r *AccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, lockAccountQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrAccountNotFound{ID: id}
		}
		r.logger.Error("Failed to lock wallet for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet for update: %w", err)
	}
	return acc, nil
}

// Update writes every mutable column, guarded by the version read earlier.
// On success acc.Version matches the stored row again.
func (r *AccountRepository) Update(ctx context.Context, acc *wallet.Account) error {
	result, err := r.querier.Exec(ctx, updateAccountQuery,
		acc.Balance,
		acc.PendingBalance,
		acc.FrozenBalance,
		acc.TotalEarned,
		acc.TotalSpent,
		acc.TotalWithdrawn,
		acc.Status,
		acc.PinHash,
		acc.PinAttempts,
		acc.PinLockedUntil,
		acc.DailyLimit,
		acc.MonthlyLimit,
		acc.DailySpent,
		acc.MonthlySpent,
		acc.LastDailyReset,
		acc.LastMonthlyReset,
		acc.LowBalanceThreshold,
		acc.UpdatedAt,
		acc.ID,
		acc.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update wallet", "id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return wallet.ErrConcurrentModification{AccountID: acc.ID}
	}

	acc.Version++
	return nil
}

func scanAccount(row pgx.Row) (*wallet.Account, error) {
	var acc wallet.Account
	err := row.Scan(
		&acc.ID,
		&acc.OwnerID,
		&acc.Balance,
		&acc.PendingBalance,
		&acc.FrozenBalance,
		&acc.TotalEarned,
		&acc.TotalSpent,
		&acc.TotalWithdrawn,
		&acc.Status,
		&acc.PinHash,
		&acc.PinAttempts,
		&acc.PinLockedUntil,
		&acc.DailyLimit,
		&acc.MonthlyLimit,
		&acc.DailySpent,
		&acc.MonthlySpent,
		&acc.LastDailyReset,
		&acc.LastMonthlyReset,
		&acc.LowBalanceThreshold,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
