package components

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountManagerImpl implements the AccountManager interface
type AccountManagerImpl struct {
	accountRepo         wallet.Repository
	policy              wallet.LimitPolicy
	lowBalanceThreshold decimal.Decimal
	clock               service.Clock
	logger              *slog.Logger
}

// NewAccountManager creates a new AccountManagerImpl
func NewAccountManager(
	accountRepo wallet.Repository,
	policy wallet.LimitPolicy,
	lowBalanceThreshold decimal.Decimal,
	clock service.Clock,
	logger *slog.Logger,
) service.AccountManager {
	return &AccountManagerImpl{
		accountRepo:         accountRepo,
		policy:              policy,
		lowBalanceThreshold: lowBalanceThreshold,
		clock:               clock,
		logger:              logger,
	}
}

// GetOrCreate returns the owner's wallet. Concurrent first accesses converge on one row.
func (m *AccountManagerImpl) GetOrCreate(ctx context.Context, ownerID uuid.UUID) (*wallet.Account, error) {
	acc, err := m.accountRepo.GetByOwnerID(ctx, ownerID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, wallet.ErrAccountNotFound{}) {
		m.logger.Error("Failed to load wallet", "owner_id", ownerID.String(), "error", err)
		return nil, fmt.Errorf("failed to load wallet for owner %s: %w", ownerID.String(), err)
	}

	acc, err = m.accountRepo.EnsureForOwner(ctx, wallet.NewAccount(ownerID, m.policy, m.lowBalanceThreshold, m.clock()))
	if err != nil {
		m.logger.Error("Failed to create wallet", "owner_id", ownerID.String(), "error", err)
		return nil, fmt.Errorf("failed to create wallet for owner %s: %w", ownerID.String(), err)
	}
	m.logger.Info("Wallet created", "owner_id", ownerID.String(), "account_id", acc.ID.String())
	return acc, nil
}

// Lock acquires the row lock of a wallet for the rest of tx
func (m *AccountManagerImpl) Lock(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*wallet.Account, error) {
	acc, err := m.accountRepo.WithTx(tx).LockForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, wallet.ErrAccountNotFound{}) {
			m.logger.Warn("Wallet not found for lock", "account_id", accountID.String())
			return nil, shared.NewError(shared.KindNotFound, "%s", err.Error())
		}
		m.logger.Error("Failed to lock wallet", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet %s: %w", accountID.String(), err)
	}
	return acc, nil
}

// LockPair locks the lower id first so two opposite transfers cannot deadlock
func (m *AccountManagerImpl) LockPair(ctx context.Context, tx pgx.Tx, first, second uuid.UUID) (*wallet.Account, *wallet.Account, error) {
	if first == second {
		acc, err := m.Lock(ctx, tx, first)
		if err != nil {
			return nil, nil, err
		}
		return acc, acc, nil
	}

	lowID, highID := first, second
	if bytes.Compare(second[:], first[:]) < 0 {
		lowID, highID = second, first
	}

	low, err := m.Lock(ctx, tx, lowID)
	if err != nil {
		return nil, nil, err
	}
	high, err := m.Lock(ctx, tx, highID)
	if err != nil {
		return nil, nil, err
	}

	if lowID == first {
		return low, high, nil
	}
	return high, low, nil
}

// Save persists acc under its version guard
func (m *AccountManagerImpl) Save(ctx context.Context, tx pgx.Tx, acc *wallet.Account) error {
	if err := m.accountRepo.WithTx(tx).Update(ctx, acc); err != nil {
		var conflict wallet.ErrConcurrentModification
		if errors.As(err, &conflict) {
			m.logger.Warn("Concurrent modification on wallet update", "account_id", acc.ID.String())
		} else {
			m.logger.Error("Failed to update wallet", "account_id", acc.ID.String(), "error", err)
		}
		return err
	}
	return nil
}

func (m *AccountManagerImpl) Policy() wallet.LimitPolicy {
	return m.policy
}
