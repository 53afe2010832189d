package wallet

import (
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Usage is the spend recorded against the current daily and monthly windows
type Usage struct {
	DailySpent       decimal.Decimal
	MonthlySpent     decimal.Decimal
	LastDailyReset   time.Time
	LastMonthlyReset time.Time
}

// LimitPolicy decides window rollovers and limit breaches.
// Day and month boundaries are evaluated in a single canonical location.
type LimitPolicy struct {
	loc *time.Location
}

// NewLimitPolicy creates a policy bound to loc, falling back to UTC when loc is nil
func NewLimitPolicy(loc *time.Location) LimitPolicy {
	if loc == nil {
		loc = time.UTC
	}
	return LimitPolicy{loc: loc}
}

// Location returns the canonical location of the policy
func (p LimitPolicy) Location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}

// StartOfDay returns midnight of t's calendar day
func (p LimitPolicy) StartOfDay(t time.Time) time.Time {
	l := t.In(p.Location())
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, p.Location())
}

// StartOfMonth returns midnight of the first day of t's calendar month
func (p LimitPolicy) StartOfMonth(t time.Time) time.Time {
	l := t.In(p.Location())
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, p.Location())
}

func (p LimitPolicy) NeedsDailyReset(lastReset, now time.Time) bool {
	return lastReset.Before(p.StartOfDay(now))
}

func (p LimitPolicy) NeedsMonthlyReset(lastReset, now time.Time) bool {
	return lastReset.Before(p.StartOfMonth(now))
}

// Rollover returns u advanced to the windows containing now and whether anything changed
func (p LimitPolicy) Rollover(u Usage, now time.Time) (Usage, bool) {
	changed := false
	if p.NeedsDailyReset(u.LastDailyReset, now) {
		u.DailySpent = decimal.Zero
		u.LastDailyReset = p.StartOfDay(now)
		changed = true
	}
	if p.NeedsMonthlyReset(u.LastMonthlyReset, now) {
		u.MonthlySpent = decimal.Zero
		u.LastMonthlyReset = p.StartOfMonth(now)
		changed = true
	}
	return u, changed
}

// Check reports whether spending amount at now would breach a configured limit.
// Unset limits never block.
func (p LimitPolicy) Check(u Usage, dailyLimit, monthlyLimit decimal.NullDecimal, amount decimal.Decimal, now time.Time) error {
	u, _ = p.Rollover(u, now)

	if dailyLimit.Valid && u.DailySpent.Add(amount).GreaterThan(dailyLimit.Decimal) {
		return shared.NewError(shared.KindLimitExceeded,
			"daily limit %s exceeded: spent %s, requested %s",
			dailyLimit.Decimal.String(), u.DailySpent.String(), amount.String())
	}
	if monthlyLimit.Valid && u.MonthlySpent.Add(amount).GreaterThan(monthlyLimit.Decimal) {
		return shared.NewError(shared.KindLimitExceeded,
			"monthly limit %s exceeded: spent %s, requested %s",
			monthlyLimit.Decimal.String(), u.MonthlySpent.String(), amount.String())
	}
	return nil
}
