package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/platform/idgen"
	"github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const maxReferenceAttempts = 5

// JournalImpl implements the Journal interface
type JournalImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

func NewJournal(ledgerRepo ledger.Repository, logger *slog.Logger) service.Journal {
	return &JournalImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// Append assigns a TXN reference and inserts t, regenerating the reference on a clash
func (j *JournalImpl) Append(ctx context.Context, tx pgx.Tx, t *ledger.Transaction) error {
	repo := j.ledgerRepo.WithTx(tx)

	for attempt := 1; ; attempt++ {
		t.TransactionID = idgen.New(ledger.IDPrefix, t.CreatedAt)
		err := repo.Create(ctx, t)
		if err == nil {
			j.logger.Debug("Ledger transaction appended",
				"transaction_id", t.TransactionID,
				"account_id", t.AccountID.String(),
				"direction", string(t.Direction),
				"status", string(t.Status),
			)
			return nil
		}
		if !errors.Is(err, ledger.ErrDuplicateTransactionID{}) {
			return err
		}
		if attempt >= maxReferenceAttempts {
			j.logger.Error("Could not allocate a unique transaction reference", "attempts", attempt)
			return fmt.Errorf("failed to allocate transaction reference: %w", err)
		}
		j.logger.Warn("Transaction reference collision, regenerating", "transaction_id", t.TransactionID)
	}
}

// Lock acquires the row lock of a ledger transaction for the rest of tx
func (j *JournalImpl) Lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*ledger.Transaction, error) {
	t, err := j.ledgerRepo.WithTx(tx).LockForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound{}) {
			return nil, shared.NewError(shared.KindNotFound, "%s", err.Error())
		}
		return nil, fmt.Errorf("failed to lock transaction %s: %w", id.String(), err)
	}
	return t, nil
}

func (j *JournalImpl) Finalize(ctx context.Context, tx pgx.Tx, t *ledger.Transaction) error {
	if err := j.ledgerRepo.WithTx(tx).Finalize(ctx, t); err != nil {
		j.logger.Error("Failed to finalize transaction", "transaction_id", t.TransactionID, "status", string(t.Status), "error", err)
		return err
	}
	return nil
}

func (j *JournalImpl) MarkReversed(ctx context.Context, tx pgx.Tx, t *ledger.Transaction) error {
	if err := j.ledgerRepo.WithTx(tx).MarkReversed(ctx, t); err != nil {
		j.logger.Error("Failed to mark transaction reversed", "transaction_id", t.TransactionID, "error", err)
		return err
	}
	return nil
}
