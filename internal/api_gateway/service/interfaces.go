// Package service declares the wallet use cases the HTTP handlers depend on.
// They are implemented by internal/wallet/service.
package service

import (
	"context"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	walletservice "github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletService defines the interface for wallet settings
type WalletService interface {
	// GetWallet returns the owner's wallet, creating an empty one on first access
	GetWallet(ctx context.Context, ownerID uuid.UUID) (*wallet.Account, error)
	SetPin(ctx context.Context, ownerID uuid.UUID, pin string) error
	ChangePin(ctx context.Context, ownerID uuid.UUID, currentPin, newPin string) error
	// SetLimits replaces both caps. An invalid NullDecimal removes a cap.
	SetLimits(ctx context.Context, ownerID uuid.UUID, daily, monthly decimal.NullDecimal) (*wallet.Account, error)
	ChangeStatus(ctx context.Context, ownerID uuid.UUID, status wallet.Status) (*wallet.Account, error)
}

// HistoryService defines owner-scoped read queries
type HistoryService interface {
	ListTransactions(ctx context.Context, ownerID uuid.UUID, q walletservice.TransactionQuery) (*walletservice.TransactionPage, error)
	GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*ledger.Transaction, error)
	ListActivity(ctx context.Context, ownerID uuid.UUID, page, perPage int) (*walletservice.ActivityPage, error)
}

// TransferService defines wallet to wallet transfers
type TransferService interface {
	Transfer(ctx context.Context, req walletservice.TransferRequest) (*walletservice.TransferResult, error)
}

// PaymentService defines the payment intent operations
type PaymentService interface {
	GetPayment(ctx context.Context, ownerID, id uuid.UUID) (*payment.Intent, error)
	TopUp(ctx context.Context, req walletservice.TopUpRequest) (*payment.Intent, error)
	Withdraw(ctx context.Context, req walletservice.WithdrawRequest) (*payment.Intent, error)
	PayAppointment(ctx context.Context, req walletservice.AppointmentPaymentRequest) (*payment.Intent, error)
	Cancel(ctx context.Context, ownerID, id uuid.UUID) (*payment.Intent, error)
	// Refund gives back amount, or the full amount when it is invalid
	Refund(ctx context.Context, id uuid.UUID, amount decimal.NullDecimal, reason string) (*payment.Intent, error)
	Retry(ctx context.Context, id uuid.UUID) (*payment.Intent, error)
}

// ReversalService defines operator reversals of completed transactions
type ReversalService interface {
	Reverse(ctx context.Context, id uuid.UUID, reason string) (*ledger.Transaction, error)
}

// Services groups what the router needs
type Services struct {
	Wallets   WalletService
	History   HistoryService
	Transfers TransferService
	Payments  PaymentService
	Reversals ReversalService
}

// FromWallet adapts the concrete wallet services
func FromWallet(s *walletservice.Services) Services {
	return Services{
		Wallets:   s.Accounts,
		History:   s.History,
		Transfers: s.Transfers,
		Payments:  s.Payments,
		Reversals: s.Reversals,
	}
}
