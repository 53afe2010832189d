package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines payment intent persistence operations
type Repository interface {
	// Create inserts intent; a clash on transaction_id returns ErrDuplicateIntent
	Create(ctx context.Context, intent *Intent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Intent, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Intent, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Intent, error)
	LockByTransactionID(ctx context.Context, transactionID string) (*Intent, error)
	Update(ctx context.Context, intent *Intent) error
	// ListDueRetries returns failed intents with a retry due at now
	ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*Intent, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrIntentNotFound indicates missing payment intent
type ErrIntentNotFound struct {
	Ref string
}

func (e ErrIntentNotFound) Error() string {
	return "payment intent not found: " + e.Ref
}

// Is implements the errors.Is interface; an empty target Ref matches any ErrIntentNotFound
func (e ErrIntentNotFound) Is(target error) bool {
	t, ok := target.(ErrIntentNotFound)
	if !ok {
		return false
	}
	return t.Ref == "" || e.Ref == t.Ref
}

// ErrDuplicateIntent indicates a transaction_id uniqueness violation
type ErrDuplicateIntent struct {
	TransactionID string
}

func (e ErrDuplicateIntent) Error() string {
	return "duplicate payment intent: " + e.TransactionID
}

// Is implements the errors.Is interface for ErrDuplicateIntent
func (e ErrDuplicateIntent) Is(target error) bool {
	t, ok := target.(ErrDuplicateIntent)
	if !ok {
		return false
	}
	return t.TransactionID == "" || e.TransactionID == t.TransactionID
}
