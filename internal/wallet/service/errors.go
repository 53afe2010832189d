package service

import (
	"context"
	"errors"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/google/uuid"
)

// asNotFound converts repository not-found errors into the NOT_FOUND kind
func asNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, wallet.ErrAccountNotFound{}) ||
		errors.Is(err, ledger.ErrTransactionNotFound{}) ||
		errors.Is(err, payment.ErrIntentNotFound{}) {
		return shared.NewError(shared.KindNotFound, "%s", err.Error())
	}
	return err
}

// pinCheck remembers whether a PIN matched inside a transaction while the
// account still carried failed attempts
type pinCheck struct {
	resetPending bool
}

func (c *pinCheck) verify(ctx context.Context, pins PinGuard, acc *wallet.Account, pin string, now time.Time) error {
	hadFailures := acc.PinAttempts > 0 || acc.PinLockedUntil != nil
	if err := pins.Verify(ctx, acc, pin, now); err != nil {
		return err
	}
	c.resetPending = hadFailures
	return nil
}

// afterPinCheck persists the PIN outcome outside the rolled back transaction.
// A mismatch is counted; a match that was rejected later still clears the counter.
func afterPinCheck(ctx context.Context, pins PinGuard, check pinCheck, err error, accountID uuid.UUID, now time.Time) error {
	if errors.Is(err, shared.ErrInvalidPin) {
		return pins.RecordFailure(ctx, accountID, now)
	}
	if check.resetPending {
		// the reset failure is logged by the guard; the caller sees the original rejection
		_ = pins.RecordSuccess(ctx, accountID, now)
	}
	return err
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// pageBounds turns 1-based page numbers into limit and offset
func pageBounds(page, perPage int) (int, int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, perPage, (page - 1) * perPage
}
