// Package payment models external money movements and their gateway-facing lifecycle.
package payment

import (
	"encoding/json"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type defines what the money movement pays for
type Type string

const (
	TypeAppointment  Type = "appointment"
	TypeWalletTopUp  Type = "wallet_topup"
	TypeSubscription Type = "subscription"
	TypePenalty      Type = "penalty"
	TypeRefund       Type = "refund"
	TypeWithdrawal   Type = "withdrawal"
)

// Status defines intent lifecycle states
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusExpired    Status = "expired"
)

// Method is the rail the money moves over
type Method string

const (
	MethodWallet       Method = "wallet"
	MethodCard         Method = "card"
	MethodEWallet      Method = "ewallet"
	MethodBankTransfer Method = "bank_transfer"
)

// Valid reports whether m is a known method
func (m Method) Valid() bool {
	switch m {
	case MethodWallet, MethodCard, MethodEWallet, MethodBankTransfer:
		return true
	}
	return false
}

// IDPrefix is prepended to every generated intent reference
const IDPrefix = "PAY"

// RetryInterval is multiplied by the retry count to schedule the next attempt
const RetryInterval = 30 * time.Minute

// BankAccount is the payout destination of a withdrawal
type BankAccount struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// Intent is one external money movement
type Intent struct {
	ID                    uuid.UUID           `json:"id"`
	OwnerID               uuid.UUID           `json:"owner_id"`
	AccountID             uuid.UUID           `json:"account_id"`
	AppointmentID         *string             `json:"appointment_id,omitempty"`
	TransactionID         string              `json:"transaction_id"`
	ExternalTransactionID string              `json:"external_transaction_id,omitempty"`
	LedgerTransactionID   *uuid.UUID          `json:"ledger_transaction_id,omitempty"`
	Type                  Type                `json:"payment_type"`
	Method                Method              `json:"payment_method"`
	Amount                decimal.Decimal     `json:"amount"`
	PlatformFee           decimal.Decimal     `json:"platform_fee"`
	GatewayFee            decimal.Decimal     `json:"payment_gateway_fee"`
	NetAmount             decimal.Decimal     `json:"net_amount"`
	Status                Status              `json:"status"`
	FailureReason         string              `json:"failure_reason,omitempty"`
	GatewayResponse       json.RawMessage     `json:"gateway_response,omitempty"`
	RefundAmount          decimal.NullDecimal `json:"refund_amount"`
	RefundReason          string              `json:"refund_reason,omitempty"`
	BankAccount           *BankAccount        `json:"bank_account,omitempty"`
	ExpiredAt             *time.Time          `json:"expired_at,omitempty"`
	PaidAt                *time.Time          `json:"paid_at,omitempty"`
	RefundedAt            *time.Time          `json:"refunded_at,omitempty"`
	RetryCount            int                 `json:"retry_count"`
	MaxRetry              int                 `json:"max_retry"`
	NextRetryAt           *time.Time          `json:"next_retry_at,omitempty"`
	AutoRetry             bool                `json:"auto_retry"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// Params describes a new intent
type Params struct {
	OwnerID       uuid.UUID
	AccountID     uuid.UUID
	AppointmentID *string
	Type          Type
	Method        Method
	Amount        decimal.Decimal
	PlatformFee   decimal.Decimal
	GatewayFee    decimal.Decimal
	BankAccount   *BankAccount
	TTL           time.Duration
	MaxRetry      int
	AutoRetry     bool
}

// NewIntent validates p and returns a pending intent. TransactionID is assigned by the caller.
func NewIntent(p Params, now time.Time) (*Intent, error) {
	if err := shared.CheckAmount(p.Amount); err != nil {
		return nil, err
	}
	if p.PlatformFee.IsNegative() || p.GatewayFee.IsNegative() {
		return nil, shared.NewError(shared.KindInvalidAmount, "fees must not be negative")
	}
	if !shared.HasMoneyScale(p.PlatformFee) || !shared.HasMoneyScale(p.GatewayFee) {
		return nil, shared.NewError(shared.KindInvalidAmount, "fees allow at most %d decimal places", shared.MoneyScale)
	}
	net := p.Amount.Sub(p.PlatformFee).Sub(p.GatewayFee)
	if net.IsNegative() {
		return nil, shared.NewError(shared.KindInvalidAmount, "fees exceed amount")
	}
	if p.MaxRetry < 0 {
		p.MaxRetry = 0
	}

	intent := &Intent{
		ID:            uuid.New(),
		OwnerID:       p.OwnerID,
		AccountID:     p.AccountID,
		AppointmentID: p.AppointmentID,
		Type:          p.Type,
		Method:        p.Method,
		Amount:        p.Amount,
		PlatformFee:   p.PlatformFee,
		GatewayFee:    p.GatewayFee,
		NetAmount:     net,
		Status:        StatusPending,
		BankAccount:   p.BankAccount,
		MaxRetry:      p.MaxRetry,
		AutoRetry:     p.AutoRetry,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.TTL > 0 {
		expiresAt := now.Add(p.TTL)
		intent.ExpiredAt = &expiresAt
	}
	return intent, nil
}

// IsExpired reports whether the payment window has passed
func (i *Intent) IsExpired(now time.Time) bool {
	return i.ExpiredAt != nil && now.After(*i.ExpiredAt)
}

// IsTerminal reports whether no further gateway transition is possible
func (i *Intent) IsTerminal() bool {
	switch i.Status {
	case StatusCompleted, StatusCancelled, StatusRefunded, StatusExpired:
		return true
	case StatusFailed:
		return i.NextRetryAt == nil
	}
	return false
}

func (i *Intent) invalid(action string) error {
	return shared.NewError(shared.KindInvalidState, "cannot %s %s payment %s", action, i.Status, i.TransactionID)
}

// MarkProcessing records that the gateway call is in flight
func (i *Intent) MarkProcessing(now time.Time) error {
	if i.Status != StatusPending {
		return i.invalid("process")
	}
	if i.IsExpired(now) {
		i.Status = StatusExpired
		i.UpdatedAt = now
		return i.invalid("process")
	}
	i.Status = StatusProcessing
	i.UpdatedAt = now
	return nil
}

// MarkPaid completes the intent. It returns applied=false without error when the
// intent is already completed, so the caller credits funds at most once.
func (i *Intent) MarkPaid(externalID string, raw json.RawMessage, now time.Time) (bool, error) {
	switch i.Status {
	case StatusCompleted:
		return false, nil
	case StatusPending:
		if i.IsExpired(now) {
			i.Status = StatusExpired
			i.UpdatedAt = now
			return false, i.invalid("pay")
		}
	case StatusProcessing:
	default:
		return false, i.invalid("pay")
	}

	i.Status = StatusCompleted
	if externalID != "" {
		i.ExternalTransactionID = externalID
	}
	if len(raw) > 0 {
		i.GatewayResponse = raw
	}
	i.FailureReason = ""
	i.NextRetryAt = nil
	i.PaidAt = &now
	i.UpdatedAt = now
	return true, nil
}

// MarkFailed records a failed attempt and schedules a retry while retries remain.
// The next attempt is due retry_count * RetryInterval from now.
func (i *Intent) MarkFailed(reason string, raw json.RawMessage, now time.Time) error {
	if i.Status != StatusPending && i.Status != StatusProcessing {
		return i.invalid("fail")
	}
	i.Status = StatusFailed
	i.FailureReason = reason
	if len(raw) > 0 {
		i.GatewayResponse = raw
	}
	i.NextRetryAt = nil
	if i.AutoRetry && i.RetryCount < i.MaxRetry {
		i.RetryCount++
		next := now.Add(time.Duration(i.RetryCount) * RetryInterval)
		i.NextRetryAt = &next
	}
	i.UpdatedAt = now
	return nil
}

// CanRetry reports whether a scheduled retry is due
func (i *Intent) CanRetry(now time.Time) bool {
	return i.Status == StatusFailed &&
		i.AutoRetry &&
		i.NextRetryAt != nil &&
		!now.Before(*i.NextRetryAt)
}

// Retry moves a failed intent with a due retry back to processing
func (i *Intent) Retry(now time.Time) error {
	if !i.CanRetry(now) {
		return i.invalid("retry")
	}
	i.Status = StatusProcessing
	i.NextRetryAt = nil
	i.UpdatedAt = now
	return nil
}

// Cancel ends a pending intent before it expires. Nothing was credited yet.
func (i *Intent) Cancel(now time.Time) error {
	if i.Status != StatusPending || i.IsExpired(now) {
		return i.invalid("cancel")
	}
	i.Status = StatusCancelled
	i.UpdatedAt = now
	return nil
}

// Expire reclassifies a pending intent whose window has passed
func (i *Intent) Expire(now time.Time) error {
	if i.Status != StatusPending || !i.IsExpired(now) {
		return i.invalid("expire")
	}
	i.Status = StatusExpired
	i.UpdatedAt = now
	return nil
}

// ProcessRefund moves a completed intent to refunded. A missing amount refunds in full.
func (i *Intent) ProcessRefund(amount decimal.NullDecimal, reason string, now time.Time) error {
	if i.Status != StatusCompleted {
		return i.invalid("refund")
	}
	refund := i.Amount
	if amount.Valid {
		refund = amount.Decimal
	}
	if !refund.IsPositive() || refund.GreaterThan(i.Amount) {
		return shared.NewError(shared.KindInvalidAmount, "refund must be between 0 and %s", i.Amount.String())
	}
	if !shared.HasMoneyScale(refund) {
		return shared.NewError(shared.KindInvalidAmount, "refund allows at most %d decimal places", shared.MoneyScale)
	}
	i.Status = StatusRefunded
	i.RefundAmount = decimal.NewNullDecimal(refund)
	i.RefundReason = reason
	i.RefundedAt = &now
	i.UpdatedAt = now
	return nil
}
