package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionEvent is the outbox payload of ledger notifications
type TransactionEvent struct {
	TransactionID string           `json:"transaction_id"`
	AccountID     uuid.UUID        `json:"account_id"`
	Category      ledger.Category  `json:"category"`
	Direction     ledger.Direction `json:"direction"`
	Amount        decimal.Decimal  `json:"amount"`
	BalanceAfter  decimal.Decimal  `json:"balance_after"`
	ReferenceID   string           `json:"reference_id,omitempty"`
	Description   string           `json:"description,omitempty"`
}

// PaymentEvent is the outbox payload of payment notifications
type PaymentEvent struct {
	TransactionID string              `json:"transaction_id"`
	PaymentType   payment.Type        `json:"payment_type"`
	Method        payment.Method      `json:"payment_method"`
	Status        payment.Status      `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	RefundAmount  decimal.NullDecimal `json:"refund_amount"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

// LowBalanceEvent is the outbox payload of a low balance warning
type LowBalanceEvent struct {
	AccountID        uuid.UUID       `json:"account_id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Threshold        decimal.Decimal `json:"threshold"`
	At               time.Time       `json:"at"`
}

// EventRecorderImpl implements the EventRecorder interface
type EventRecorderImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewEventRecorder(outboxRepo outbox.Repository, logger *slog.Logger) service.EventRecorder {
	return &EventRecorderImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

func (r *EventRecorderImpl) RecordTransaction(ctx context.Context, tx pgx.Tx, event shared.EventType, t *ledger.Transaction) error {
	return r.record(ctx, tx, event, t.OwnerID, t.ID, TransactionEvent{
		TransactionID: t.TransactionID,
		AccountID:     t.AccountID,
		Category:      t.Category,
		Direction:     t.Direction,
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
		ReferenceID:   t.ReferenceID,
		Description:   t.Description,
	})
}

func (r *EventRecorderImpl) RecordPayment(ctx context.Context, tx pgx.Tx, event shared.EventType, intent *payment.Intent) error {
	return r.record(ctx, tx, event, intent.OwnerID, intent.ID, PaymentEvent{
		TransactionID: intent.TransactionID,
		PaymentType:   intent.Type,
		Method:        intent.Method,
		Status:        intent.Status,
		Amount:        intent.Amount,
		RefundAmount:  intent.RefundAmount,
		FailureReason: intent.FailureReason,
	})
}

// RecordLowBalance writes a warning only on the transition into low balance
func (r *EventRecorderImpl) RecordLowBalance(ctx context.Context, tx pgx.Tx, acc *wallet.Account, wasLow bool) error {
	if wasLow || !acc.IsLowBalance() {
		return nil
	}
	return r.record(ctx, tx, shared.EventLowBalance, acc.OwnerID, acc.ID, LowBalanceEvent{
		AccountID:        acc.ID,
		AvailableBalance: acc.AvailableBalance(),
		Threshold:        acc.LowBalanceThreshold,
		At:               acc.UpdatedAt,
	})
}

func (r *EventRecorderImpl) record(ctx context.Context, tx pgx.Tx, event shared.EventType, ownerID, aggregateID uuid.UUID, payload any) error {
	msg, err := outbox.NewMessage(event, ownerID, aggregateID, payload)
	if err != nil {
		r.logger.Error("Failed to build outbox message", "event", string(event), "aggregate_id", aggregateID.String(), "error", err)
		return err
	}

	if err := r.outboxRepo.WithTx(tx).Create(ctx, msg); err != nil {
		r.logger.Error("Failed to create outbox message",
			"event", string(event),
			"aggregate_id", aggregateID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for %s: %w", aggregateID.String(), err)
	}

	r.logger.Debug("Outbox message created", "event", string(event), "outbox_id", msg.ID)
	return nil
}
