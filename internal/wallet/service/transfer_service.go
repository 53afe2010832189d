package service

import (
	"context"
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransferRequest moves funds between two owners' wallets
type TransferRequest struct {
	SenderOwnerID    uuid.UUID
	RecipientOwnerID uuid.UUID
	Amount           decimal.Decimal
	Pin              string
	Note             string
}

// TransferResult holds both sides of a committed transfer
type TransferResult struct {
	Debit  *ledger.Transaction
	Credit *ledger.Transaction
}

// TransferService moves funds between wallets atomically
type TransferService struct {
	db       persistence.TxRunner
	accounts AccountManager
	journal  Journal
	events   EventRecorder
	pins     PinGuard
	clock    Clock
	logger   *slog.Logger
}

func NewTransferService(
	db persistence.TxRunner,
	accounts AccountManager,
	journal Journal,
	events EventRecorder,
	pins PinGuard,
	clock Clock,
	logger *slog.Logger,
) *TransferService {
	return &TransferService{
		db:       db,
		accounts: accounts,
		journal:  journal,
		events:   events,
		pins:     pins,
		clock:    clock,
		logger:   logger,
	}
}

// Transfer debits the sender and credits the recipient in one storage transaction.
// Both wallets are locked in ascending id order. Either both sides commit or neither does.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	logger := s.logger.With("sender_owner_id", req.SenderOwnerID.String(), "recipient_owner_id", req.RecipientOwnerID.String())

	if err := shared.CheckAmount(req.Amount); err != nil {
		return nil, err
	}

	sender, err := s.accounts.GetOrCreate(ctx, req.SenderOwnerID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.accounts.GetOrCreate(ctx, req.RecipientOwnerID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	policy := s.accounts.Policy()
	var result TransferResult
	var check pinCheck

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		from, to, err := s.accounts.LockPair(ctx, tx, sender.ID, recipient.ID)
		if err != nil {
			return err
		}

		if err := check.verify(ctx, s.pins, from, req.Pin, now); err != nil {
			return err
		}
		if from.ID == to.ID {
			return shared.ErrSelfTransfer
		}
		if err := from.CheckSpend(req.Amount, policy, now); err != nil {
			return err
		}

		wasLow := from.IsLowBalance()
		senderBefore := from.Balance
		if err := from.Debit(req.Amount, policy, now); err != nil {
			return err
		}
		recipientBefore := to.Balance
		if err := to.Credit(req.Amount, now); err != nil {
			return err
		}

		debit, err := ledger.NewTransaction(ledger.Params{
			AccountID:     from.ID,
			OwnerID:       from.OwnerID,
			Direction:     ledger.DirectionDebit,
			Category:      ledger.CategoryTransfer,
			Amount:        req.Amount,
			ReferenceType: ledger.ReferenceTransfer,
			ReferenceID:   to.OwnerID.String(),
			Description:   req.Note,
		}, now)
		if err != nil {
			return err
		}
		credit, err := ledger.NewTransaction(ledger.Params{
			AccountID:     to.ID,
			OwnerID:       to.OwnerID,
			Direction:     ledger.DirectionCredit,
			Category:      ledger.CategoryTransfer,
			Amount:        req.Amount,
			ReferenceType: ledger.ReferenceTransfer,
			ReferenceID:   from.OwnerID.String(),
			Description:   req.Note,
		}, now)
		if err != nil {
			return err
		}
		if err := debit.Complete(senderBefore, from.Balance, now); err != nil {
			return err
		}
		if err := credit.Complete(recipientBefore, to.Balance, now); err != nil {
			return err
		}

		if err := s.journal.Append(ctx, tx, debit); err != nil {
			return err
		}
		if err := s.journal.Append(ctx, tx, credit); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, from); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, to); err != nil {
			return err
		}

		if err := s.events.RecordTransaction(ctx, tx, shared.EventTransferSent, debit); err != nil {
			return err
		}
		if err := s.events.RecordTransaction(ctx, tx, shared.EventTransferReceived, credit); err != nil {
			return err
		}
		if err := s.events.RecordLowBalance(ctx, tx, from, wasLow); err != nil {
			return err
		}

		result = TransferResult{Debit: debit, Credit: credit}
		return nil
	})
	if err != nil {
		err = afterPinCheck(ctx, s.pins, check, err, sender.ID, now)
		logger.Warn("Transfer rejected", "amount", req.Amount.String(), "error", err)
		return nil, err
	}

	logger.Info("Transfer committed",
		"amount", req.Amount.String(),
		"debit_id", result.Debit.TransactionID,
		"credit_id", result.Credit.TransactionID,
	)
	return &result, nil
}
