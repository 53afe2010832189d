package handler

import (
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/shopspring/decimal"
)

// WalletResponse is the owner's view of their wallet
type WalletResponse struct {
	ID                  string              `json:"id"`
	OwnerID             string              `json:"owner_id"`
	Status              string              `json:"status"`
	Balance             decimal.Decimal     `json:"balance"`
	PendingBalance      decimal.Decimal     `json:"pending_balance"`
	FrozenBalance       decimal.Decimal     `json:"frozen_balance"`
	AvailableBalance    decimal.Decimal     `json:"available_balance"`
	TotalEarned         decimal.Decimal     `json:"total_earned"`
	TotalSpent          decimal.Decimal     `json:"total_spent"`
	TotalWithdrawn      decimal.Decimal     `json:"total_withdrawn"`
	PinSet              bool                `json:"pin_set"`
	PinLockedUntil      *time.Time          `json:"pin_locked_until,omitempty"`
	DailyLimit          decimal.NullDecimal `json:"daily_limit"`
	MonthlyLimit        decimal.NullDecimal `json:"monthly_limit"`
	DailySpent          decimal.Decimal     `json:"daily_spent"`
	MonthlySpent        decimal.Decimal     `json:"monthly_spent"`
	LowBalanceThreshold decimal.Decimal     `json:"low_balance_threshold"`
	LowBalance          bool                `json:"low_balance"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// BalanceResponse is the short balance summary
type BalanceResponse struct {
	Balance          decimal.Decimal `json:"balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	FrozenBalance    decimal.Decimal `json:"frozen_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	LowBalance       bool            `json:"low_balance"`
}

type SetPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

type ChangePinRequest struct {
	CurrentPin string `json:"current_pin" binding:"required"`
	NewPin     string `json:"new_pin" binding:"required"`
}

// SetLimitsRequest replaces both caps. A null or missing limit removes the cap.
type SetLimitsRequest struct {
	DailyLimit   decimal.NullDecimal `json:"daily_limit" binding:"omitempty,gt=0"`
	MonthlyLimit decimal.NullDecimal `json:"monthly_limit" binding:"omitempty,gt=0"`
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Method string          `json:"payment_method" binding:"required,payment_method"`
}

type BankAccountRequest struct {
	BankCode      string `json:"bank_code" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
}

type WithdrawRequest struct {
	Amount      decimal.Decimal    `json:"amount" binding:"required"`
	BankAccount BankAccountRequest `json:"bank_account"`
	Pin         string             `json:"pin" binding:"required"`
}

type TransferRequest struct {
	RecipientOwnerID string          `json:"recipient_owner_id" binding:"required,uuid"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	Pin              string          `json:"pin" binding:"required"`
	Note             string          `json:"note" binding:"max=255"`
}

type AppointmentPaymentRequest struct {
	AppointmentID string          `json:"appointment_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PlatformFee   decimal.Decimal `json:"platform_fee" binding:"gte=0"`
}

// RefundRequest refunds part of a payment, or all of it when amount is omitted
type RefundRequest struct {
	Amount decimal.NullDecimal `json:"amount" binding:"omitempty,gt=0"`
	Reason string              `json:"reason" binding:"required"`
}

type ReverseRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,wallet_status"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// TransactionListParams filters the transaction history.
// from and to accept RFC 3339 timestamps or plain dates; a plain to date includes that whole day.
type TransactionListParams struct {
	PaginationParams
	Type     string `form:"type" binding:"omitempty,oneof=credit debit transfer_in transfer_out"`
	Status   string `form:"status" binding:"omitempty,oneof=pending completed failed cancelled reversed"`
	Category string `form:"category" binding:"omitempty,oneof=earning spending topup withdrawal transfer fee refund bonus penalty adjustment"`
	From     string `form:"from"`
	To       string `form:"to"`
}

func mapWalletToResponse(acc *wallet.Account) WalletResponse {
	return WalletResponse{
		ID:                  acc.ID.String(),
		OwnerID:             acc.OwnerID.String(),
		Status:              string(acc.Status),
		Balance:             acc.Balance,
		PendingBalance:      acc.PendingBalance,
		FrozenBalance:       acc.FrozenBalance,
		AvailableBalance:    acc.AvailableBalance(),
		TotalEarned:         acc.TotalEarned,
		TotalSpent:          acc.TotalSpent,
		TotalWithdrawn:      acc.TotalWithdrawn,
		PinSet:              acc.HasPin(),
		PinLockedUntil:      acc.PinLockedUntil,
		DailyLimit:          acc.DailyLimit,
		MonthlyLimit:        acc.MonthlyLimit,
		DailySpent:          acc.DailySpent,
		MonthlySpent:        acc.MonthlySpent,
		LowBalanceThreshold: acc.LowBalanceThreshold,
		LowBalance:          acc.IsLowBalance(),
		CreatedAt:           acc.CreatedAt,
		UpdatedAt:           acc.UpdatedAt,
	}
}

func mapBalanceToResponse(acc *wallet.Account) BalanceResponse {
	return BalanceResponse{
		Balance:          acc.Balance,
		PendingBalance:   acc.PendingBalance,
		FrozenBalance:    acc.FrozenBalance,
		AvailableBalance: acc.AvailableBalance(),
		LowBalance:       acc.IsLowBalance(),
	}
}
