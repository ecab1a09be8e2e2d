package report

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency formats ledger amounts, which carry no currency of their own.
const DefaultCurrency = "EUR"

// Money formats amount in the given ISO currency, e.g. "€1,234.50".
// Unknown or empty currencies fall back to DefaultCurrency.
func Money(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		cur = money.GetCurrency(DefaultCurrency)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// SignedMoney is Money with an explicit plus sign for gains.
func SignedMoney(amount decimal.Decimal, currency string) string {
	if amount.IsPositive() {
		return "+" + Money(amount, currency)
	}
	return Money(amount, currency)
}

// Percent formats a percentage with two decimals.
func Percent(p decimal.Decimal) string {
	return p.StringFixed(2) + "%"
}
