// Package ledger holds the append-only transaction log of wallet balance movements.
// Rows are never deleted; corrections are new opposite transactions.
package ledger

import (
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction of a balance movement
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == DirectionCredit {
		return DirectionDebit
	}
	return DirectionCredit
}

// Type is the user-facing classification of a transaction
type Type string

const (
	TypeCredit      Type = "credit"
	TypeDebit       Type = "debit"
	TypeTransferIn  Type = "transfer_in"
	TypeTransferOut Type = "transfer_out"
)

// Category defines the business reason for a balance movement
type Category string

const (
	CategoryEarning    Category = "earning"
	CategorySpending   Category = "spending"
	CategoryTopUp      Category = "topup"
	CategoryWithdrawal Category = "withdrawal"
	CategoryTransfer   Category = "transfer"
	CategoryFee        Category = "fee"
	CategoryRefund     Category = "refund"
	CategoryBonus      Category = "bonus"
	CategoryPenalty    Category = "penalty"
	CategoryAdjustment Category = "adjustment"
)

// Status defines transaction lifecycle states
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusReversed  Status = "reversed"
)

// ReferenceType names the business entity a transaction points to
type ReferenceType string

const (
	ReferenceAppointment ReferenceType = "appointment"
	ReferencePayment     ReferenceType = "payment"
	ReferenceTopUp       ReferenceType = "topup"
	ReferenceWithdrawal  ReferenceType = "withdrawal"
	ReferenceRefund      ReferenceType = "refund"
	ReferencePenalty     ReferenceType = "penalty"
	ReferenceBonus       ReferenceType = "bonus"
	ReferenceTransfer    ReferenceType = "transfer"
	ReferenceAdjustment  ReferenceType = "adjustment"
)

// IDPrefix is prepended to every generated transaction reference
const IDPrefix = "TXN"

// Transaction is one entry of the wallet log
type Transaction struct {
	ID                    uuid.UUID       `json:"id"`
	AccountID             uuid.UUID       `json:"account_id"`
	OwnerID               uuid.UUID       `json:"owner_id"`
	TransactionID         string          `json:"transaction_id"`
	ReferenceID           string          `json:"reference_id,omitempty"`
	ReferenceType         ReferenceType   `json:"reference_type,omitempty"`
	Type                  Type            `json:"type"`
	Direction             Direction       `json:"direction"`
	Category              Category        `json:"category"`
	Status                Status          `json:"status"`
	Amount                decimal.Decimal `json:"amount"`
	FeeAmount             decimal.Decimal `json:"fee_amount"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	NetAmount             decimal.Decimal `json:"net_amount"`
	BalanceBefore         decimal.Decimal `json:"balance_before"`
	BalanceAfter          decimal.Decimal `json:"balance_after"`
	Description           string          `json:"description,omitempty"`
	FailureReason         string          `json:"failure_reason,omitempty"`
	ReversalTransactionID *uuid.UUID      `json:"reversal_transaction_id,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	ProcessedAt           *time.Time      `json:"processed_at,omitempty"`
}

// Params describes a balance movement to be logged
type Params struct {
	AccountID     uuid.UUID
	OwnerID       uuid.UUID
	Direction     Direction
	Category      Category
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Tax           decimal.Decimal
	ReferenceType ReferenceType
	ReferenceID   string
	Description   string
}

// NewTransaction validates p and returns a pending transaction.
// TransactionID is left empty until the journal assigns one.
func NewTransaction(p Params, now time.Time) (*Transaction, error) {
	if p.Direction != DirectionCredit && p.Direction != DirectionDebit {
		return nil, shared.NewError(shared.KindInvalidState, "unknown direction %q", p.Direction)
	}

	t := &Transaction{
		ID:            uuid.New(),
		AccountID:     p.AccountID,
		OwnerID:       p.OwnerID,
		ReferenceID:   p.ReferenceID,
		ReferenceType: p.ReferenceType,
		Type:          typeFor(p.Direction, p.Category),
		Direction:     p.Direction,
		Category:      p.Category,
		Status:        StatusPending,
		Amount:        p.Amount,
		Description:   p.Description,
		CreatedAt:     now,
	}
	if err := t.SetCharges(p.Fee, p.Tax); err != nil {
		return nil, err
	}
	return t, nil
}

func typeFor(d Direction, c Category) Type {
	switch {
	case c == CategoryTransfer && d == DirectionCredit:
		return TypeTransferIn
	case c == CategoryTransfer:
		return TypeTransferOut
	case d == DirectionCredit:
		return TypeCredit
	default:
		return TypeDebit
	}
}

// SetCharges replaces fee and tax on a pending transaction and recomputes the net amount
func (t *Transaction) SetCharges(fee, tax decimal.Decimal) error {
	if t.Status != StatusPending {
		return shared.NewError(shared.KindInvalidState, "transaction %s is %s", t.TransactionID, t.Status)
	}
	if err := shared.CheckAmount(t.Amount); err != nil {
		return err
	}
	if fee.IsNegative() || tax.IsNegative() {
		return shared.NewError(shared.KindInvalidAmount, "fee and tax must not be negative")
	}
	if !shared.HasMoneyScale(fee) || !shared.HasMoneyScale(tax) {
		return shared.NewError(shared.KindInvalidAmount, "fee and tax allow at most %d decimal places", shared.MoneyScale)
	}
	net := t.Amount.Sub(fee).Sub(tax)
	if net.IsNegative() {
		return shared.NewError(shared.KindInvalidAmount, "fee and tax exceed amount")
	}
	t.FeeAmount = fee
	t.TaxAmount = tax
	t.NetAmount = net
	return nil
}

// IsCredit reports whether the transaction adds to the balance
func (t *Transaction) IsCredit() bool {
	return t.Direction == DirectionCredit
}

// Effect is how much the transaction moves the balance: the net amount for
// credits, the gross amount for debits.
func (t *Transaction) Effect() decimal.Decimal {
	if t.IsCredit() {
		return t.NetAmount
	}
	return t.Amount
}

// Complete commits a pending transaction with the balance snapshots taken at commit
func (t *Transaction) Complete(balanceBefore, balanceAfter decimal.Decimal, now time.Time) error {
	if t.Status != StatusPending {
		return shared.NewError(shared.KindInvalidState, "cannot complete %s transaction", t.Status)
	}
	t.Status = StatusCompleted
	t.BalanceBefore = balanceBefore
	t.BalanceAfter = balanceAfter
	t.ProcessedAt = &now
	return nil
}

// Fail moves a pending transaction to failed
func (t *Transaction) Fail(reason string, now time.Time) error {
	if t.Status != StatusPending {
		return shared.NewError(shared.KindInvalidState, "cannot fail %s transaction", t.Status)
	}
	t.Status = StatusFailed
	t.FailureReason = reason
	t.ProcessedAt = &now
	return nil
}

// Cancel moves a pending transaction to cancelled
func (t *Transaction) Cancel(now time.Time) error {
	if t.Status != StatusPending {
		return shared.NewError(shared.KindInvalidState, "cannot cancel %s transaction", t.Status)
	}
	t.Status = StatusCancelled
	t.ProcessedAt = &now
	return nil
}

// CanBeReversed requires a completed transaction that has not been reversed yet
func (t *Transaction) CanBeReversed() bool {
	return t.Status == StatusCompleted && t.ReversalTransactionID == nil
}

// Reverse marks t reversed and returns the compensating completed transaction.
// Both rows reference each other. The caller applies the opposite account mutation.
func (t *Transaction) Reverse(reason string, now time.Time) (*Transaction, error) {
	if !t.CanBeReversed() {
		return nil, shared.NewError(shared.KindNotReversible, "transaction %s is %s", t.TransactionID, t.Status)
	}

	originalID := t.ID
	direction := t.Direction.Opposite()
	reversal := &Transaction{
		ID:                    uuid.New(),
		AccountID:             t.AccountID,
		OwnerID:               t.OwnerID,
		ReferenceID:           t.TransactionID,
		ReferenceType:         ReferenceAdjustment,
		Type:                  typeFor(direction, t.Category),
		Direction:             direction,
		Category:              t.Category,
		Status:                StatusCompleted,
		Amount:                t.Amount,
		FeeAmount:             decimal.Zero,
		TaxAmount:             decimal.Zero,
		NetAmount:             t.Amount,
		BalanceBefore:         t.BalanceAfter,
		BalanceAfter:          t.BalanceBefore,
		Description:           "Reversal of " + t.TransactionID + ": " + reason,
		ReversalTransactionID: &originalID,
		CreatedAt:             now,
		ProcessedAt:           &now,
	}

	t.Status = StatusReversed
	t.ReversalTransactionID = &reversal.ID
	return reversal, nil
}
