package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/carebridge-wallet-ledger/internal/platform/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountService manages wallet settings: PIN, limits and administrative status
type AccountService struct {
	db       persistence.TxRunner
	accounts AccountManager
	pins     PinGuard
	clock    Clock
	logger   *slog.Logger
}

func NewAccountService(
	db persistence.TxRunner,
	accounts AccountManager,
	pins PinGuard,
	clock Clock,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		db:       db,
		accounts: accounts,
		pins:     pins,
		clock:    clock,
		logger:   logger,
	}
}

// GetWallet returns the owner's wallet, creating it on first access.
// Spend counters of elapsed windows are shown as zero without a write.
func (s *AccountService) GetWallet(ctx context.Context, ownerID uuid.UUID) (*wallet.Account, error) {
	acc, err := s.accounts.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	acc.ResetLimitsIfNeeded(s.accounts.Policy(), s.clock())
	return acc, nil
}

// SetPin configures the first PIN of a wallet
func (s *AccountService) SetPin(ctx context.Context, ownerID uuid.UUID, pin string) error {
	hash, err := s.hashPin(pin)
	if err != nil {
		return err
	}

	acc, err := s.accounts.GetOrCreate(ctx, ownerID)
	if err != nil {
		return err
	}

	now := s.clock()
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.accounts.Lock(ctx, tx, acc.ID)
		if err != nil {
			return err
		}
		if locked.HasPin() {
			return shared.NewError(shared.KindInvalidState, "pin already set, use change pin")
		}
		locked.SetPin(hash, now)
		return s.accounts.Save(ctx, tx, locked)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Wallet PIN set", "owner_id", ownerID.String(), "account_id", acc.ID.String())
	return nil
}

// ChangePin replaces the PIN after verifying the current one. Mismatches count towards the lockout.
func (s *AccountService) ChangePin(ctx context.Context, ownerID uuid.UUID, currentPin, newPin string) error {
	hash, err := s.hashPin(newPin)
	if err != nil {
		return err
	}

	acc, err := s.accounts.GetOrCreate(ctx, ownerID)
	if err != nil {
		return err
	}

	now := s.clock()
	var check pinCheck
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.accounts.Lock(ctx, tx, acc.ID)
		if err != nil {
			return err
		}
		if err := check.verify(ctx, s.pins, locked, currentPin, now); err != nil {
			return err
		}
		locked.SetPin(hash, now)
		return s.accounts.Save(ctx, tx, locked)
	})
	if err != nil {
		return afterPinCheck(ctx, s.pins, check, err, acc.ID, now)
	}

	s.logger.Info("Wallet PIN changed", "owner_id", ownerID.String(), "account_id", acc.ID.String())
	return nil
}

// SetLimits replaces the daily and monthly caps. An invalid NullDecimal removes a cap.
func (s *AccountService) SetLimits(ctx context.Context, ownerID uuid.UUID, daily, monthly decimal.NullDecimal) (*wallet.Account, error) {
	acc, err := s.accounts.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var updated *wallet.Account
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.accounts.Lock(ctx, tx, acc.ID)
		if err != nil {
			return err
		}
		locked.ResetLimitsIfNeeded(s.accounts.Policy(), now)
		if err := locked.SetLimits(daily, monthly, now); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeStatus applies an administrative status change to the owner's wallet
func (s *AccountService) ChangeStatus(ctx context.Context, ownerID uuid.UUID, status wallet.Status) (*wallet.Account, error) {
	acc, err := s.accounts.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var updated *wallet.Account
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.accounts.Lock(ctx, tx, acc.ID)
		if err != nil {
			return err
		}
		if err := locked.ChangeStatus(status, now); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Wallet status changed", "owner_id", ownerID.String(), "status", string(status))
	return updated, nil
}

func (s *AccountService) hashPin(pin string) (string, error) {
	hash, err := s.pins.Hash(pin)
	if err != nil {
		if errors.Is(err, security.ErrInvalidPinFormat) {
			return "", shared.NewError(shared.KindInvalidRequest, "%s", err.Error())
		}
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return hash, nil
}
