package service

import (
	"context"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Clock returns the current instant. Services never call time.Now directly.
type Clock func() time.Time

// AccountManager resolves wallets and persists them inside storage transactions
type AccountManager interface {
	// GetOrCreate returns the owner's wallet, creating an empty one on first use
	GetOrCreate(ctx context.Context, ownerID uuid.UUID) (*wallet.Account, error)
	Lock(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*wallet.Account, error)
	// LockPair locks both wallets in ascending id order and returns them in argument order.
	// Equal ids are locked once and the same account is returned twice.
	LockPair(ctx context.Context, tx pgx.Tx, first, second uuid.UUID) (*wallet.Account, *wallet.Account, error)
	Save(ctx context.Context, tx pgx.Tx, acc *wallet.Account) error
	Policy() wallet.LimitPolicy
}

// Journal appends to and transitions the transaction log
type Journal interface {
	// Append assigns a unique transaction reference and inserts t
	Append(ctx context.Context, tx pgx.Tx, t *ledger.Transaction) error
	Lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*ledger.Transaction, error)
	Finalize(ctx context.Context, tx pgx.Tx, t *ledger.Transaction) error
	MarkReversed(ctx context.Context, tx pgx.Tx, t *ledger.Transaction) error
}

// EventRecorder writes owner notifications to the outbox in the caller's transaction
type EventRecorder interface {
	RecordTransaction(ctx context.Context, tx pgx.Tx, event shared.EventType, t *ledger.Transaction) error
	RecordPayment(ctx context.Context, tx pgx.Tx, event shared.EventType, intent *payment.Intent) error
	// RecordLowBalance emits an event only when acc just crossed below its threshold
	RecordLowBalance(ctx context.Context, tx pgx.Tx, acc *wallet.Account, wasLow bool) error
}

// PinGuard hashes and verifies wallet PINs
type PinGuard interface {
	Hash(pin string) (string, error)
	// Verify returns ErrPinNotSet, ErrPinLocked or ErrInvalidPin, or resets the
	// attempt counter of the locked acc in memory on a match
	Verify(ctx context.Context, acc *wallet.Account, pin string, now time.Time) error
	// RecordFailure counts a mismatch in its own committed transaction and returns
	// ErrInvalidPin, or ErrPinLocked when this failure locked the PIN
	RecordFailure(ctx context.Context, accountID uuid.UUID, now time.Time) error
	// RecordSuccess commits the counter reset of a match whose transaction rolled back
	RecordSuccess(ctx context.Context, accountID uuid.UUID, now time.Time) error
}
