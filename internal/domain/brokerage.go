package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// StatusFilled is the only order status that counts towards cost basis.
const StatusFilled = "FILLED"

// Fill is a normalized historical order.
type Fill struct {
	OrderID  string              `json:"orderId"`
	Ticker   string              `json:"ticker"`
	Name     string              `json:"name,omitempty"`
	Side     Side                `json:"side"`
	Status   string              `json:"status"`
	Quantity decimal.Decimal     `json:"quantity"`
	NetValue decimal.NullDecimal `json:"netValue"` // wallet impact; absent on unsettled orders
	Currency string              `json:"currency,omitempty"`
	FilledAt *time.Time          `json:"filledAt,omitempty"`
}

// Settled reports whether the fill is FILLED and carries a wallet impact.
func (f Fill) Settled() bool {
	return f.Status == StatusFilled && f.NetValue.Valid
}

// Position is a normalized open holding.
type Position struct {
	Ticker       string              `json:"ticker"`
	Name         string              `json:"name,omitempty"`
	Quantity     decimal.Decimal     `json:"quantity"`
	CurrentPrice decimal.Decimal     `json:"currentPrice"`
	Value        decimal.Decimal     `json:"value"`
	Currency     string              `json:"currency,omitempty"`
	CostBasis    decimal.NullDecimal `json:"costBasis"`
	UnrealizedPL decimal.NullDecimal `json:"unrealizedPL"`
}

// Dividend is a normalized dividend payment in EUR.
type Dividend struct {
	Ticker string          `json:"ticker"`
	Amount decimal.Decimal `json:"amount"`
	PaidOn *time.Time      `json:"paidOn,omitempty"`
}
