package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReversalService compensates committed transactions with an opposite entry
type ReversalService struct {
	db       persistence.TxRunner
	accounts AccountManager
	journal  Journal
	events   EventRecorder
	clock    Clock
	logger   *slog.Logger
}

func NewReversalService(
	db persistence.TxRunner,
	accounts AccountManager,
	journal Journal,
	events EventRecorder,
	clock Clock,
	logger *slog.Logger,
) *ReversalService {
	return &ReversalService{
		db:       db,
		accounts: accounts,
		journal:  journal,
		events:   events,
		clock:    clock,
		logger:   logger,
	}
}

// Reverse marks the original reversed, appends the compensating transaction and
// applies the opposite balance change, all in one storage transaction.
// A transaction can be reversed once.
func (s *ReversalService) Reverse(ctx context.Context, id uuid.UUID, reason string) (*ledger.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewError(shared.KindInvalidRequest, "reversal reason is required")
	}

	now := s.clock()
	var reversal *ledger.Transaction

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		original, err := s.journal.Lock(ctx, tx, id)
		if err != nil {
			return asNotFound(err)
		}
		if !original.CanBeReversed() {
			return shared.NewError(shared.KindNotReversible, "transaction %s is %s", original.TransactionID, original.Status)
		}

		acc, err := s.accounts.Lock(ctx, tx, original.AccountID)
		if err != nil {
			return err
		}
		wasLow := acc.IsLowBalance()

		// the balance mutation is checked before either row changes
		if err := acc.ApplyReversal(original.Direction, original.Effect(), now); err != nil {
			return err
		}
		compensating, err := original.Reverse(reason, now)
		if err != nil {
			return err
		}

		if err := s.journal.Append(ctx, tx, compensating); err != nil {
			return err
		}
		if err := s.journal.MarkReversed(ctx, tx, original); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, acc); err != nil {
			return err
		}

		if err := s.events.RecordTransaction(ctx, tx, shared.EventTransactionReversed, compensating); err != nil {
			return err
		}
		if err := s.events.RecordLowBalance(ctx, tx, acc, wasLow); err != nil {
			return err
		}
		reversal = compensating
		return nil
	})
	if err != nil {
		s.logger.Warn("Reversal rejected", "id", id.String(), "error", err)
		return nil, err
	}

	s.logger.Info("Transaction reversed",
		"original_id", id.String(),
		"reversal_transaction_id", reversal.TransactionID,
		"reason", reason,
	)
	return reversal, nil
}
