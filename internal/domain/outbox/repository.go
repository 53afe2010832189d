package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Repository persists wallet events next to the balance changes that raise them.
// Create is only meaningful inside the caller's transaction, see WithTx.
type Repository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	// PurgeProcessed drops PROCESSED rows created before cutoff and reports how many went
	PurgeProcessed(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound is returned when an update matches no outbox row
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return fmt.Sprintf("wallet outbox event %d not found", e.ID)
}
