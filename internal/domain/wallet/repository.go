package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines wallet persistence operations
type Repository interface {
	// EnsureForOwner inserts acc unless the owner already has a wallet and returns the stored one
	EnsureForOwner(ctx context.Context, acc *Account) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*Account, error)
	// LockForUpdate acquires a row lock for the rest of the surrounding transaction
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	// Update persists acc guarded by its version and bumps the version on success
	Update(ctx context.Context, acc *Account) error
	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for wallet: " + e.AccountID.String()
}

// ErrAccountNotFound indicates missing wallet. Either ID or OwnerID is set.
type ErrAccountNotFound struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	if e.OwnerID != uuid.Nil {
		return "wallet not found for owner: " + e.OwnerID.String()
	}
	return "wallet not found: " + e.ID.String()
}

// Is implements the errors.Is interface; an empty target matches any ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil && t.OwnerID == uuid.Nil {
		return true
	}
	return e.ID == t.ID && e.OwnerID == t.OwnerID
}
