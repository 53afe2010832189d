package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PinHasher is the hashing backend of the guard
type PinHasher interface {
	Hash(pin string) (string, error)
	Compare(ctx context.Context, hash, pin string) (bool, error)
}

// PinGuardImpl implements the PinGuard interface
type PinGuardImpl struct {
	db             persistence.TxRunner
	accountRepo    wallet.Repository
	hasher         PinHasher
	compareTimeout time.Duration
	logger         *slog.Logger
}

func NewPinGuard(
	db persistence.TxRunner,
	accountRepo wallet.Repository,
	hasher PinHasher,
	compareTimeout time.Duration,
	logger *slog.Logger,
) service.PinGuard {
	return &PinGuardImpl{
		db:             db,
		accountRepo:    accountRepo,
		hasher:         hasher,
		compareTimeout: compareTimeout,
		logger:         logger,
	}
}

func (g *PinGuardImpl) Hash(pin string) (string, error) {
	return g.hasher.Hash(pin)
}

// Verify checks pin against the locked acc. On a match the failure counter is
// reset in memory and persisted with the caller's save.
func (g *PinGuardImpl) Verify(ctx context.Context, acc *wallet.Account, pin string, now time.Time) error {
	if !acc.HasPin() {
		return shared.ErrPinNotSet
	}
	if acc.IsPinLocked(now) {
		return shared.NewError(shared.KindPinLocked, "pin locked until %s", acc.PinLockedUntil.Format(time.RFC3339))
	}

	compareCtx := ctx
	if g.compareTimeout > 0 {
		var cancel context.CancelFunc
		compareCtx, cancel = context.WithTimeout(ctx, g.compareTimeout)
		defer cancel()
	}

	ok, err := g.hasher.Compare(compareCtx, *acc.PinHash, pin)
	if err != nil {
		g.logger.Error("PIN comparison failed", "account_id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to verify pin: %w", err)
	}
	if !ok {
		return shared.ErrInvalidPin
	}

	acc.ResetPinAttempts(now)
	return nil
}

// RecordFailure commits a failed attempt on its own so the caller's rollback cannot erase it
func (g *PinGuardImpl) RecordFailure(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	var locked bool
	err := g.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := g.accountRepo.WithTx(tx)
		acc, err := repo.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		locked = acc.IncrementPinAttempts(now)
		return repo.Update(ctx, acc)
	})
	if err != nil {
		g.logger.Error("Failed to record PIN failure", "account_id", accountID.String(), "error", err)
		return fmt.Errorf("failed to record pin failure: %w", err)
	}

	if locked {
		g.logger.Warn("PIN locked after repeated failures", "account_id", accountID.String())
		return shared.ErrPinLocked
	}
	g.logger.Info("PIN mismatch recorded", "account_id", accountID.String())
	return shared.ErrInvalidPin
}

// RecordSuccess commits the reset of a matched PIN whose enclosing operation
// rolled back, so earlier failures no longer count towards the lockout
func (g *PinGuardImpl) RecordSuccess(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	err := g.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := g.accountRepo.WithTx(tx)
		acc, err := repo.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.PinAttempts == 0 && acc.PinLockedUntil == nil {
			return nil
		}
		acc.ResetPinAttempts(now)
		return repo.Update(ctx, acc)
	})
	if err != nil {
		g.logger.Error("Failed to record PIN reset", "account_id", accountID.String(), "error", err)
		return fmt.Errorf("failed to record pin reset: %w", err)
	}
	return nil
}
