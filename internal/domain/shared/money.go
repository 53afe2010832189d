package shared

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits every stored amount carries
const MoneyScale = 2

// HasMoneyScale reports whether amount fits NUMERIC(20,2) without rounding
func HasMoneyScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MoneyScale))
}

// CheckAmount accepts a positive amount with at most MoneyScale fractional digits
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !HasMoneyScale(amount) {
		return NewError(KindInvalidAmount, "amount %s has more than %d decimal places", amount.String(), MoneyScale)
	}
	return nil
}
