package aggregate

import (
	"sort"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Flow is the settled money moved for one ticker. Buys are absolute.
type Flow struct {
	Buys     decimal.Decimal
	Sells    decimal.Decimal
	Currency string
}

// CostBasis is buys minus sells.
func (f Flow) CostBasis() decimal.Decimal {
	return f.Buys.Sub(f.Sells)
}

// Flows sums settled BUY and SELL net values per ticker. Fills that are not
// FILLED or carry no wallet impact are ignored, as are fills without a ticker.
func Flows(fills []domain.Fill) map[string]Flow {
	flows := make(map[string]Flow)
	for _, f := range fills {
		if f.Ticker == "" || !f.Settled() {
			continue
		}

		flow, ok := flows[f.Ticker]
		if !ok {
			flow.Currency = f.Currency
		}
		switch f.Side {
		case domain.SideBuy:
			flow.Buys = flow.Buys.Add(f.NetValue.Decimal.Abs())
		case domain.SideSell:
			flow.Sells = flow.Sells.Add(f.NetValue.Decimal)
		}
		flows[f.Ticker] = flow
	}
	return flows
}

// CostBasis returns buys minus sells per ticker from settled fills.
func CostBasis(fills []domain.Fill) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for ticker, flow := range Flows(fills) {
		out[ticker] = flow.CostBasis()
	}
	return out
}

// DividendsByTicker sums dividends per ticker regardless of position status.
func DividendsByTicker(divs []domain.Dividend) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, d := range divs {
		if d.Ticker == "" {
			continue
		}
		out[d.Ticker] = out[d.Ticker].Add(d.Amount)
	}
	return out
}

// ClosedPosition is a ticker with trading history but no open holding.
type ClosedPosition struct {
	Ticker        string          `json:"ticker"`
	TotalBuys     decimal.Decimal `json:"totalBuys"`
	TotalSells    decimal.Decimal `json:"totalSells"`
	Dividends     decimal.Decimal `json:"dividends"`
	RealizedPL    decimal.Decimal `json:"realizedProfitLoss"`
	PercentChange decimal.Decimal `json:"percentageChange"`
	Currency      string          `json:"currency,omitempty"`
}

// ClosedTotals sums the closed positions. PercentChange is weighted by buys.
type ClosedTotals struct {
	TotalBuys     decimal.Decimal `json:"totalBuys"`
	TotalSells    decimal.Decimal `json:"totalSells"`
	Dividends     decimal.Decimal `json:"dividends"`
	RealizedPL    decimal.Decimal `json:"realizedProfitLoss"`
	PercentChange decimal.Decimal `json:"percentageChange"`
}

// ClosedPositions computes realized P&L for every traded ticker that has no
// open position, sorted by realized P&L descending.
func ClosedPositions(fills []domain.Fill, positions []domain.Position, divs []domain.Dividend) ([]ClosedPosition, ClosedTotals) {
	open := make(map[string]bool, len(positions))
	for _, p := range positions {
		if p.Ticker != "" {
			open[p.Ticker] = true
		}
	}
	dividends := DividendsByTicker(divs)

	closed := []ClosedPosition{}
	var totals ClosedTotals
	for ticker, flow := range Flows(fills) {
		if open[ticker] || (flow.Buys.IsZero() && flow.Sells.IsZero()) {
			continue
		}

		pl := flow.Sells.Sub(flow.Buys)
		closed = append(closed, ClosedPosition{
			Ticker:        ticker,
			TotalBuys:     flow.Buys,
			TotalSells:    flow.Sells,
			Dividends:     dividends[ticker],
			RealizedPL:    pl,
			PercentChange: Percent(pl, flow.Buys),
			Currency:      flow.Currency,
		})

		totals.TotalBuys = totals.TotalBuys.Add(flow.Buys)
		totals.TotalSells = totals.TotalSells.Add(flow.Sells)
		totals.Dividends = totals.Dividends.Add(dividends[ticker])
		totals.RealizedPL = totals.RealizedPL.Add(pl)
	}
	totals.PercentChange = Percent(totals.RealizedPL, totals.TotalBuys)

	sort.Slice(closed, func(i, j int) bool {
		if c := closed[i].RealizedPL.Cmp(closed[j].RealizedPL); c != 0 {
			return c > 0
		}
		return closed[i].Ticker < closed[j].Ticker
	})
	return closed, totals
}

// OpenPosition is a current holding with its unrealized result.
type OpenPosition struct {
	Ticker        string          `json:"ticker"`
	Name          string          `json:"name,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	Value         decimal.Decimal `json:"value"`
	CostBasis     decimal.Decimal `json:"costBasis"`
	UnrealizedPL  decimal.Decimal `json:"unrealizedProfitLoss"`
	PercentChange decimal.Decimal `json:"percentageChange"`
	Dividends     decimal.Decimal `json:"dividends"`
	Currency      string          `json:"currency,omitempty"`
}

// OpenPositions keeps holdings with positive quantity and price, sorted by
// value descending, and returns them with the total portfolio value.
//
// Cost basis comes from settled fills when the ticker has any buys, otherwise
// from the upstream position, otherwise zero. Unrealized P&L prefers the
// upstream figure and falls back to value minus cost basis.
func OpenPositions(positions []domain.Position, fills []domain.Fill, divs []domain.Dividend) ([]OpenPosition, decimal.Decimal) {
	flows := Flows(fills)
	dividends := DividendsByTicker(divs)

	out := []OpenPosition{}
	total := decimal.Zero
	for _, p := range positions {
		if !p.Quantity.IsPositive() || !p.CurrentPrice.IsPositive() {
			continue
		}

		cost := decimal.Zero
		if flow, ok := flows[p.Ticker]; ok && flow.Buys.IsPositive() {
			cost = flow.CostBasis()
		} else if p.CostBasis.Valid {
			cost = p.CostBasis.Decimal
		}

		pl := p.Value.Sub(cost)
		if p.UnrealizedPL.Valid {
			pl = p.UnrealizedPL.Decimal
		}

		out = append(out, OpenPosition{
			Ticker:        p.Ticker,
			Name:          p.Name,
			Quantity:      p.Quantity,
			CurrentPrice:  p.CurrentPrice,
			Value:         p.Value,
			CostBasis:     cost,
			UnrealizedPL:  pl,
			PercentChange: Percent(pl, cost),
			Dividends:     dividends[p.Ticker],
			Currency:      p.Currency,
		})
		total = total.Add(p.Value)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value)
	})
	return out, total
}

// PortfolioValue sums the value of holdings with positive quantity and price.
func PortfolioValue(positions []domain.Position) decimal.Decimal {
	_, total := OpenPositions(positions, nil, nil)
	return total
}

// FilledOrders returns settled fills, newest first. Fills without a
// timestamp sort last.
func FilledOrders(fills []domain.Fill) []domain.Fill {
	out := []domain.Fill{}
	for _, f := range fills {
		if f.Settled() {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].FilledAt, out[j].FilledAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}
