package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount a single transaction or opening balance may
// carry. It keeps every serialized record a short, fixed-precision line.
var MaxAmount = decimal.NewFromInt(1_000_000_000)

// AmountDecimals is the currency precision: whole cents
const AmountDecimals = 2

// CheckAmount validates a caller-supplied amount: positive, whole cents and
// no larger than MaxAmount.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return checkBounds(amount)
}

// checkBounds applies the precision and ceiling rules to a non-negative amount
func checkBounds(amount decimal.Decimal) error {
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: exceeds the %s limit", ErrInvalidAmount, MaxAmount.StringFixed(AmountDecimals))
	}
	if !amount.Equal(amount.Truncate(AmountDecimals)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, AmountDecimals)
	}
	return nil
}
