package aggregate

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Percent returns numerator / denominator * 100, or 0 when denominator is 0.
func Percent(numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimal.Zero
	}
	return numerator.Div(denominator).Mul(hundred)
}
