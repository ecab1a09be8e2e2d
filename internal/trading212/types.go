package trading212

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Number is a lenient decimal field. null, a missing key or a value that is
// not a number all decode as absent, so one odd field never fails its page.
type Number struct {
	decimal.NullDecimal
}

func (n *Number) UnmarshalJSON(b []byte) error {
	n.NullDecimal = decimal.NullDecimal{}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return nil
	}
	n.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

// Instrument is the nested instrument descriptor carried by positions, orders and dividends.
type Instrument struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	ISIN     string `json:"isin"`
	Currency string `json:"currency"`
}

// PositionWallet is the wallet impact block on an open position.
type PositionWallet struct {
	Currency             string `json:"currency"`
	TotalCost            Number `json:"totalCost"`
	CurrentValue         Number `json:"currentValue"`
	UnrealizedProfitLoss Number `json:"unrealizedProfitLoss"`
	FXImpact             Number `json:"fxImpact"`
}

// RawPosition is one element of GET /api/v0/equity/portfolio. Field names vary
// between API versions, so every price-like field is optional.
type RawPosition struct {
	Ticker           string          `json:"ticker"`
	TickerSymbol     string          `json:"tickerSymbol"`
	Quantity         Number          `json:"quantity"`
	CurrentPrice     Number          `json:"currentPrice"`
	Price            Number          `json:"price"`
	AveragePrice     Number          `json:"averagePrice"`
	AveragePricePaid Number          `json:"averagePricePaid"`
	Value            Number          `json:"value"`
	PPL              Number          `json:"ppl"`
	Instrument       *Instrument     `json:"instrument"`
	WalletImpact     *PositionWallet `json:"walletImpact"`
}

// FillWallet is the wallet impact of an executed fill. NetValue is negative for buys.
type FillWallet struct {
	Currency           string `json:"currency"`
	NetValue           Number `json:"netValue"`
	RealisedProfitLoss Number `json:"realisedProfitLoss"`
	FXRate             Number `json:"fxRate"`
}

type RawFill struct {
	ID           json.Number `json:"id"`
	FilledAt     string      `json:"filledAt"`
	Price        Number      `json:"price"`
	Quantity     Number      `json:"quantity"`
	Type         string      `json:"type"`
	WalletImpact *FillWallet `json:"walletImpact"`
}

type RawOrder struct {
	ID             json.Number `json:"id"`
	CreatedAt      string      `json:"createdAt"`
	Currency       string      `json:"currency"`
	Status         string      `json:"status"`
	Side           string      `json:"side"`
	Type           string      `json:"type"`
	Ticker         string      `json:"ticker"`
	Quantity       Number      `json:"quantity"`
	FilledQuantity Number      `json:"filledQuantity"`
	Instrument     *Instrument `json:"instrument"`
}

// RawHistoricalOrder is one item of the paginated order history.
type RawHistoricalOrder struct {
	Order RawOrder `json:"order"`
	Fill  *RawFill `json:"fill"`
}

// RawDividend is one item of the paginated dividend history.
type RawDividend struct {
	Ticker       string      `json:"ticker"`
	Reference    string      `json:"reference"`
	Quantity     Number      `json:"quantity"`
	Amount       Number      `json:"amount"`
	AmountInEuro Number      `json:"amountInEuro"`
	PaidOn       string      `json:"paidOn"`
	Type         string      `json:"type"`
	Instrument   *Instrument `json:"instrument"`
}
