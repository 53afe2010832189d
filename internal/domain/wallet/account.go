// Package wallet models the per-owner ledger account and its spend rules.
package wallet

import (
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status defines the administrative state of a wallet
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusFrozen    Status = "frozen"
	StatusClosed    Status = "closed"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusFrozen, StatusClosed:
		return true
	}
	return false
}

const (
	MaxPinAttempts  = 3
	PinLockDuration = 30 * time.Minute
)

// Account is a user's wallet. Frozen funds are carved out of Balance.
type Account struct {
	ID                  uuid.UUID           `json:"id"`
	OwnerID             uuid.UUID           `json:"owner_id"`
	Balance             decimal.Decimal     `json:"balance"`
	PendingBalance      decimal.Decimal     `json:"pending_balance"`
	FrozenBalance       decimal.Decimal     `json:"frozen_balance"`
	TotalEarned         decimal.Decimal     `json:"total_earned"`
	TotalSpent          decimal.Decimal     `json:"total_spent"`
	TotalWithdrawn      decimal.Decimal     `json:"total_withdrawn"`
	Status              Status              `json:"status"`
	PinHash             *string             `json:"-"`
	PinAttempts         int                 `json:"pin_attempts"`
	PinLockedUntil      *time.Time          `json:"pin_locked_until,omitempty"`
	DailyLimit          decimal.NullDecimal `json:"daily_limit"`
	MonthlyLimit        decimal.NullDecimal `json:"monthly_limit"`
	DailySpent          decimal.Decimal     `json:"daily_spent"`
	MonthlySpent        decimal.Decimal     `json:"monthly_spent"`
	LastDailyReset      time.Time           `json:"last_daily_reset"`
	LastMonthlyReset    time.Time           `json:"last_monthly_reset"`
	LowBalanceThreshold decimal.Decimal     `json:"low_balance_threshold"`
	Version             int                 `json:"version"` // For optimistic locking
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewAccount creates an active wallet with zero balances
func NewAccount(ownerID uuid.UUID, policy LimitPolicy, lowBalanceThreshold decimal.Decimal, now time.Time) *Account {
	return &Account{
		ID:                  uuid.New(),
		OwnerID:             ownerID,
		Balance:             decimal.Zero,
		PendingBalance:      decimal.Zero,
		FrozenBalance:       decimal.Zero,
		TotalEarned:         decimal.Zero,
		TotalSpent:          decimal.Zero,
		TotalWithdrawn:      decimal.Zero,
		Status:              StatusActive,
		DailySpent:          decimal.Zero,
		MonthlySpent:        decimal.Zero,
		LastDailyReset:      policy.StartOfDay(now),
		LastMonthlyReset:    policy.StartOfMonth(now),
		LowBalanceThreshold: lowBalanceThreshold,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// AvailableBalance is what can be spent right now
func (a *Account) AvailableBalance() decimal.Decimal {
	return a.Balance.Sub(a.FrozenBalance)
}

// HasPin reports whether a PIN has been configured
func (a *Account) HasPin() bool {
	return a.PinHash != nil && *a.PinHash != ""
}

// IsPinLocked is computed from pin_locked_until, never stored as a flag
func (a *Account) IsPinLocked(now time.Time) bool {
	return a.PinLockedUntil != nil && now.Before(*a.PinLockedUntil)
}

// IsLowBalance reports whether available funds dropped under the configured threshold
func (a *Account) IsLowBalance() bool {
	return a.LowBalanceThreshold.IsPositive() && a.AvailableBalance().LessThan(a.LowBalanceThreshold)
}

func (a *Account) usage() Usage {
	return Usage{
		DailySpent:       a.DailySpent,
		MonthlySpent:     a.MonthlySpent,
		LastDailyReset:   a.LastDailyReset,
		LastMonthlyReset: a.LastMonthlyReset,
	}
}

// ResetLimitsIfNeeded zeroes the spend counters of elapsed windows
func (a *Account) ResetLimitsIfNeeded(policy LimitPolicy, now time.Time) bool {
	u, changed := policy.Rollover(a.usage(), now)
	if changed {
		a.DailySpent = u.DailySpent
		a.MonthlySpent = u.MonthlySpent
		a.LastDailyReset = u.LastDailyReset
		a.LastMonthlyReset = u.LastMonthlyReset
		a.UpdatedAt = now
	}
	return changed
}

// CheckSpend explains why amount cannot be spent, or returns nil. It does not mutate.
func (a *Account) CheckSpend(amount decimal.Decimal, policy LimitPolicy, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if a.Status != StatusActive {
		return shared.NewError(shared.KindInvalidState, "wallet is %s", a.Status)
	}
	if a.AvailableBalance().LessThan(amount) {
		return shared.NewError(shared.KindInsufficientFunds,
			"available balance %s is below %s", a.AvailableBalance().String(), amount.String())
	}
	return policy.Check(a.usage(), a.DailyLimit, a.MonthlyLimit, amount, now)
}

func (a *Account) CanSpend(amount decimal.Decimal, policy LimitPolicy, now time.Time) bool {
	return a.CheckSpend(amount, policy, now) == nil
}

// CheckWithdraw applies the spend rules plus the PIN lock and the platform minimum
func (a *Account) CheckWithdraw(amount, minWithdrawal decimal.Decimal, policy LimitPolicy, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if amount.LessThan(minWithdrawal) {
		return shared.NewError(shared.KindInvalidAmount, "minimum withdrawal is %s", minWithdrawal.String())
	}
	if a.IsPinLocked(now) {
		return shared.ErrPinLocked
	}
	return a.CheckSpend(amount, policy, now)
}

func (a *Account) CanWithdraw(amount, minWithdrawal decimal.Decimal, policy LimitPolicy, now time.Time) bool {
	return a.CheckWithdraw(amount, minWithdrawal, policy, now) == nil
}

// Credit adds amount to the balance and the lifetime earnings
func (a *Account) Credit(amount decimal.Decimal, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if a.Status == StatusClosed {
		return shared.NewError(shared.KindInvalidState, "wallet is closed")
	}
	a.Balance = a.Balance.Add(amount)
	a.TotalEarned = a.TotalEarned.Add(amount)
	a.UpdatedAt = now
	return nil
}

// CreditRefund returns previously spent funds. Refunds are not earnings.
func (a *Account) CreditRefund(amount decimal.Decimal, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if a.Status == StatusClosed {
		return shared.NewError(shared.KindInvalidState, "wallet is closed")
	}
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = now
	return nil
}

// Debit removes amount after the spend checks pass. Nothing changes on failure.
func (a *Account) Debit(amount decimal.Decimal, policy LimitPolicy, now time.Time) error {
	a.ResetLimitsIfNeeded(policy, now)
	if err := a.CheckSpend(amount, policy, now); err != nil {
		return err
	}
	a.Balance = a.Balance.Sub(amount)
	a.TotalSpent = a.TotalSpent.Add(amount)
	a.DailySpent = a.DailySpent.Add(amount)
	a.MonthlySpent = a.MonthlySpent.Add(amount)
	a.UpdatedAt = now
	return nil
}

// Freeze earmarks amount of the available balance
func (a *Account) Freeze(amount decimal.Decimal, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if a.AvailableBalance().LessThan(amount) {
		return shared.NewError(shared.KindInsufficientFunds,
			"cannot freeze %s, available %s", amount.String(), a.AvailableBalance().String())
	}
	a.FrozenBalance = a.FrozenBalance.Add(amount)
	a.UpdatedAt = now
	return nil
}

// Unfreeze releases a previous hold back to the available balance
func (a *Account) Unfreeze(amount decimal.Decimal, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if a.FrozenBalance.LessThan(amount) {
		return shared.NewError(shared.KindInvalidState,
			"cannot unfreeze %s, frozen %s", amount.String(), a.FrozenBalance.String())
	}
	a.FrozenBalance = a.FrozenBalance.Sub(amount)
	a.UpdatedAt = now
	return nil
}

// HoldForWithdrawal checks the withdrawal rules, freezes amount and reserves it
// against the spend windows so concurrent requests cannot overrun a limit.
func (a *Account) HoldForWithdrawal(amount, minWithdrawal decimal.Decimal, policy LimitPolicy, now time.Time) error {
	a.ResetLimitsIfNeeded(policy, now)
	if err := a.CheckWithdraw(amount, minWithdrawal, policy, now); err != nil {
		return err
	}
	if err := a.Freeze(amount, now); err != nil {
		return err
	}
	a.DailySpent = a.DailySpent.Add(amount)
	a.MonthlySpent = a.MonthlySpent.Add(amount)
	return nil
}

// ReleaseHold undoes HoldForWithdrawal after a failed payout. The window
// reservation is returned only if the hold was placed in the current window.
func (a *Account) ReleaseHold(amount decimal.Decimal, heldAt time.Time, policy LimitPolicy, now time.Time) error {
	if err := a.Unfreeze(amount, now); err != nil {
		return err
	}
	a.ResetLimitsIfNeeded(policy, now)
	if !heldAt.Before(a.LastDailyReset) {
		a.DailySpent = decimal.Max(decimal.Zero, a.DailySpent.Sub(amount))
	}
	if !heldAt.Before(a.LastMonthlyReset) {
		a.MonthlySpent = decimal.Max(decimal.Zero, a.MonthlySpent.Sub(amount))
	}
	return nil
}

// SettleHold is unfreeze plus debit of a held amount after a successful payout.
// Limits were enforced when the hold was placed.
func (a *Account) SettleHold(amount decimal.Decimal, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if a.FrozenBalance.LessThan(amount) || a.Balance.LessThan(amount) {
		return shared.NewError(shared.KindInvalidState,
			"cannot settle %s, frozen %s", amount.String(), a.FrozenBalance.String())
	}
	a.FrozenBalance = a.FrozenBalance.Sub(amount)
	a.Balance = a.Balance.Sub(amount)
	a.TotalWithdrawn = a.TotalWithdrawn.Add(amount)
	a.UpdatedAt = now
	return nil
}

// ApplyReversal applies the opposite of a previously committed movement once.
// Lifetime counters stay untouched.
func (a *Account) ApplyReversal(original ledger.Direction, amount decimal.Decimal, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if original == ledger.DirectionCredit {
		if a.AvailableBalance().LessThan(amount) {
			return shared.NewError(shared.KindInsufficientFunds,
				"cannot reverse credit of %s, available %s", amount.String(), a.AvailableBalance().String())
		}
		a.Balance = a.Balance.Sub(amount)
	} else {
		a.Balance = a.Balance.Add(amount)
	}
	a.UpdatedAt = now
	return nil
}

// RemoveRefunded takes back funds credited by a now refunded payment.
// It bypasses spend limits and the status gate since it is an operator action.
func (a *Account) RemoveRefunded(amount decimal.Decimal, now time.Time) error {
	if err := shared.CheckAmount(amount); err != nil {
		return err
	}
	if a.AvailableBalance().LessThan(amount) {
		return shared.NewError(shared.KindInsufficientFunds,
			"cannot refund %s, available %s", amount.String(), a.AvailableBalance().String())
	}
	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = now
	return nil
}

// SetPin stores a new PIN hash and clears any lockout
func (a *Account) SetPin(hash string, now time.Time) {
	a.PinHash = &hash
	a.PinAttempts = 0
	a.PinLockedUntil = nil
	a.UpdatedAt = now
}

// IncrementPinAttempts records a failed PIN check and reports whether the PIN is now locked
func (a *Account) IncrementPinAttempts(now time.Time) bool {
	// an elapsed lock starts a fresh series
	if a.PinLockedUntil != nil && !a.IsPinLocked(now) {
		a.PinAttempts = 0
		a.PinLockedUntil = nil
	}
	a.PinAttempts++
	a.UpdatedAt = now
	if a.PinAttempts >= MaxPinAttempts {
		until := now.Add(PinLockDuration)
		a.PinLockedUntil = &until
		return true
	}
	return false
}

// ResetPinAttempts clears the failure counter after a successful check
func (a *Account) ResetPinAttempts(now time.Time) {
	if a.PinAttempts == 0 && a.PinLockedUntil == nil {
		return
	}
	a.PinAttempts = 0
	a.PinLockedUntil = nil
	a.UpdatedAt = now
}

// ChangeStatus applies an administrative transition. Closed is terminal.
func (a *Account) ChangeStatus(to Status, now time.Time) error {
	if !to.Valid() {
		return shared.NewError(shared.KindInvalidState, "unknown wallet status %q", to)
	}
	if a.Status == StatusClosed {
		return shared.NewError(shared.KindInvalidState, "wallet is closed")
	}
	if to == StatusClosed && !a.Balance.IsZero() {
		return shared.NewError(shared.KindInvalidState, "wallet still holds %s", a.Balance.String())
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}

// SetLimits replaces the daily and monthly caps. An invalid NullDecimal clears a cap.
func (a *Account) SetLimits(daily, monthly decimal.NullDecimal, now time.Time) error {
	if daily.Valid && !daily.Decimal.IsPositive() {
		return shared.NewError(shared.KindInvalidAmount, "daily limit must be greater than zero")
	}
	if monthly.Valid && !monthly.Decimal.IsPositive() {
		return shared.NewError(shared.KindInvalidAmount, "monthly limit must be greater than zero")
	}
	if (daily.Valid && !shared.HasMoneyScale(daily.Decimal)) || (monthly.Valid && !shared.HasMoneyScale(monthly.Decimal)) {
		return shared.NewError(shared.KindInvalidAmount, "limits allow at most %d decimal places", shared.MoneyScale)
	}
	if daily.Valid && monthly.Valid && daily.Decimal.GreaterThan(monthly.Decimal) {
		return shared.NewError(shared.KindInvalidAmount, "daily limit cannot exceed monthly limit")
	}
	a.DailyLimit = daily
	a.MonthlyLimit = monthly
	a.UpdatedAt = now
	return nil
}
