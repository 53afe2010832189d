package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Filter narrows a transaction listing. Zero values mean "any".
type Filter struct {
	AccountID uuid.UUID
	Type      Type
	Status    Status
	Category  Category
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// Repository manages transaction persistence. There is no delete.
type Repository interface {
	// Create inserts t; a clash on transaction_id returns ErrDuplicateTransactionID
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// Finalize persists the terminal state of a row that is still pending
	Finalize(ctx context.Context, t *Transaction) error
	// MarkReversed annotates a completed, not yet reversed row
	MarkReversed(ctx context.Context, t *Transaction) error
	List(ctx context.Context, filter Filter) ([]*Transaction, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	ID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	// A nil ID in the target matches any ErrTransactionNotFound
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrDuplicateTransactionID indicates a transaction_id uniqueness violation
type ErrDuplicateTransactionID struct {
	TransactionID string
}

func (e ErrDuplicateTransactionID) Error() string {
	return "duplicate transaction id: " + e.TransactionID
}

// Is implements the errors.Is interface for ErrDuplicateTransactionID
func (e ErrDuplicateTransactionID) Is(target error) bool {
	t, ok := target.(ErrDuplicateTransactionID)
	if !ok {
		return false
	}
	return t.TransactionID == "" || e.TransactionID == t.TransactionID
}

// ErrStaleTransaction indicates the row left the state the update expected
type ErrStaleTransaction struct {
	ID uuid.UUID
}

func (e ErrStaleTransaction) Error() string {
	return "transaction changed concurrently: " + e.ID.String()
}
