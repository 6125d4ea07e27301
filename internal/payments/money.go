package payments

import "github.com/shopspring/decimal"

// MinorUnits converts a two-decimal currency amount to integer cents,
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
