package trading212

import (
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// firstOf returns the first present value.
func firstOf(values ...Number) (decimal.Decimal, bool) {
	for _, v := range values {
		if v.Valid {
			return v.Decimal, true
		}
	}
	return decimal.Zero, false
}

func valueOr(v Number) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// NormalizePosition maps a raw portfolio entry to a domain position.
func NormalizePosition(p RawPosition) domain.Position {
	out := domain.Position{
		Quantity: valueOr(p.Quantity),
	}

	switch {
	case p.Instrument != nil && p.Instrument.Ticker != "":
		out.Ticker = p.Instrument.Ticker
	case p.Ticker != "":
		out.Ticker = p.Ticker
	default:
		out.Ticker = p.TickerSymbol
	}
	if p.Instrument != nil {
		out.Name = p.Instrument.Name
		out.Currency = p.Instrument.Currency
	}
	if p.WalletImpact != nil && p.WalletImpact.Currency != "" {
		out.Currency = p.WalletImpact.Currency
	}

	out.CurrentPrice, _ = firstOf(p.CurrentPrice, p.Price, p.AveragePrice)

	var wallet PositionWallet
	if p.WalletImpact != nil {
		wallet = *p.WalletImpact
	}

	if v, ok := firstOf(p.Value, wallet.CurrentValue); ok {
		out.Value = v
	} else {
		out.Value = out.CurrentPrice.Mul(out.Quantity)
	}

	if wallet.TotalCost.Valid {
		out.CostBasis = wallet.TotalCost.NullDecimal
	} else if avg, ok := firstOf(p.AveragePricePaid, p.AveragePrice); ok {
		out.CostBasis = decimal.NewNullDecimal(avg.Mul(out.Quantity))
	}

	if pl, ok := firstOf(wallet.UnrealizedProfitLoss, p.PPL); ok {
		out.UnrealizedPL = decimal.NewNullDecimal(pl)
	}

	return out
}

// NormalizeOrder maps a historical order item to a domain fill. Orders that
// never executed have no wallet impact and normalize with an invalid NetValue.
func NormalizeOrder(o RawHistoricalOrder) domain.Fill {
	out := domain.Fill{
		OrderID:  o.Order.ID.String(),
		Status:   strings.ToUpper(o.Order.Status),
		Side:     domain.Side(strings.ToUpper(o.Order.Side)),
		Currency: o.Order.Currency,
	}

	if o.Order.Instrument != nil && o.Order.Instrument.Ticker != "" {
		out.Ticker = o.Order.Instrument.Ticker
	} else {
		out.Ticker = o.Order.Ticker
	}
	if o.Order.Instrument != nil {
		out.Name = o.Order.Instrument.Name
	}

	out.Quantity, _ = firstOf(o.Order.FilledQuantity, o.Order.Quantity)

	if o.Fill != nil {
		if q, ok := firstOf(o.Fill.Quantity); ok {
			out.Quantity = q
		}
		out.FilledAt = parseTime(o.Fill.FilledAt)
		if w := o.Fill.WalletImpact; w != nil {
			if w.NetValue.Valid {
				out.NetValue = w.NetValue.NullDecimal
			}
			if w.Currency != "" {
				out.Currency = w.Currency
			}
		}
	}

	return out
}

// NormalizeDividend maps a dividend item to a domain dividend. The EUR amount
// is preferred over the instrument currency amount.
func NormalizeDividend(d RawDividend) domain.Dividend {
	out := domain.Dividend{
		PaidOn: parseTime(d.PaidOn),
	}
	if d.Ticker != "" {
		out.Ticker = d.Ticker
	} else if d.Instrument != nil {
		out.Ticker = d.Instrument.Ticker
	}
	out.Amount, _ = firstOf(d.AmountInEuro, d.Amount)
	return out
}
