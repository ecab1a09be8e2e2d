package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/notion"
)

// escape keeps table cells on one row.
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func shares(w io.Writer, title string, rows []aggregate.TagShare, currency string) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(w, "\n### %s\n\n", title)
	fmt.Fprintln(w, "| Tag | Amount | Share |")
	fmt.Fprintln(w, "|:----|-------:|------:|")
	for _, r := range rows {
		fmt.Fprintf(w, "| %s | %s | %s |\n", escape(r.Tag), Money(r.Amount, currency), Percent(r.Percentage))
	}
}

// SummaryMarkdown renders the ledger totals and per-tag breakdowns.
func SummaryMarkdown(title string, l aggregate.Ledger) string {
	var b strings.Builder
	if title == "" {
		title = "Overview"
	}
	fmt.Fprintf(&b, "# %s\n\n", escape(title))

	fmt.Fprintln(&b, "| Metric | Amount |")
	fmt.Fprintln(&b, "|:-------|-------:|")
	row := func(name string, v string) {
		fmt.Fprintf(&b, "| %s | %s |\n", name, v)
	}
	row("Income", Money(l.Income, DefaultCurrency))
	row("Expenditure", Money(l.Expenditure, DefaultCurrency))
	row("Cashflow", SignedMoney(l.Cashflow, DefaultCurrency))
	row("Master", Money(l.Master, DefaultCurrency))
	row("Investment buys", Money(l.InvestmentBuys, DefaultCurrency))
	row("Investment sells", Money(l.InvestmentSells, DefaultCurrency))
	if !l.InvestmentOther.IsZero() {
		row("Other investment", SignedMoney(l.InvestmentOther, DefaultCurrency))
	}
	row("**Checking**", "**"+Money(l.Checking, DefaultCurrency)+"**")
	row("Net worth", Money(l.NetWorth, DefaultCurrency))
	fmt.Fprintf(&b, "\n_%d records_\n", l.Records)

	shares(&b, "Income by tag", l.IncomeBreakdown(), DefaultCurrency)
	shares(&b, "Expenditure by tag", l.ExpenditureBreakdown(), DefaultCurrency)
	return b.String()
}

// MonthlyMarkdown renders the monthly series, oldest month first.
func MonthlyMarkdown(months []aggregate.MonthSummary) string {
	var b strings.Builder
	fmt.Fprintln(&b, "# Monthly")
	fmt.Fprintln(&b)
	if len(months) == 0 {
		fmt.Fprintln(&b, "_No dated records._")
		return b.String()
	}
	fmt.Fprintln(&b, "| Month | Income | Expenditure | Savings | Checking at end |")
	fmt.Fprintln(&b, "|:------|-------:|------------:|--------:|----------------:|")
	for _, m := range months {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			m.Label,
			Money(m.Income, DefaultCurrency),
			Money(m.Expenditure, DefaultCurrency),
			SignedMoney(m.Savings, DefaultCurrency),
			Money(m.CheckingAtEnd, DefaultCurrency),
		)
	}
	return b.String()
}

// PositionsMarkdown renders the open positions and the portfolio total.
func PositionsMarkdown(open []aggregate.OpenPosition, total decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintln(&b, "# Open positions")
	fmt.Fprintln(&b)
	if len(open) == 0 {
		fmt.Fprintln(&b, "_No open positions._")
		return b.String()
	}
	fmt.Fprintln(&b, "| Ticker | Quantity | Price | Value | Cost | P&L | % | Dividends |")
	fmt.Fprintln(&b, "|:-------|---------:|------:|------:|-----:|----:|--:|----------:|")
	for _, p := range open {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			escape(p.Ticker),
			p.Quantity.String(),
			Money(p.CurrentPrice, p.Currency),
			Money(p.Value, p.Currency),
			Money(p.CostBasis, p.Currency),
			SignedMoney(p.UnrealizedPL, p.Currency),
			Percent(p.PercentChange),
			Money(p.Dividends, DefaultCurrency),
		)
	}
	fmt.Fprintf(&b, "\n**Portfolio value:** %s\n", Money(total, DefaultCurrency))
	return b.String()
}

// ClosedMarkdown renders realized results per closed ticker and the totals.
func ClosedMarkdown(closed []aggregate.ClosedPosition, totals aggregate.ClosedTotals) string {
	var b strings.Builder
	fmt.Fprintln(&b, "# Realized profit & loss")
	fmt.Fprintln(&b)
	if len(closed) == 0 {
		fmt.Fprintln(&b, "_No closed positions._")
		return b.String()
	}
	fmt.Fprintln(&b, "| Ticker | Bought | Sold | Dividends | P&L | % |")
	fmt.Fprintln(&b, "|:-------|-------:|-----:|----------:|----:|--:|")
	for _, c := range closed {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			escape(c.Ticker),
			Money(c.TotalBuys, c.Currency),
			Money(c.TotalSells, c.Currency),
			Money(c.Dividends, DefaultCurrency),
			SignedMoney(c.RealizedPL, c.Currency),
			Percent(c.PercentChange),
		)
	}
	fmt.Fprintf(&b, "| **Total** | %s | %s | %s | %s | %s |\n",
		Money(totals.TotalBuys, DefaultCurrency),
		Money(totals.TotalSells, DefaultCurrency),
		Money(totals.Dividends, DefaultCurrency),
		SignedMoney(totals.RealizedPL, DefaultCurrency),
		Percent(totals.PercentChange),
	)
	return b.String()
}

// OrdersMarkdown renders filled orders as given, newest first when produced
// by aggregate.FilledOrders.
func OrdersMarkdown(fills []domain.Fill) string {
	var b strings.Builder
	fmt.Fprintln(&b, "# Filled orders")
	fmt.Fprintln(&b)
	if len(fills) == 0 {
		fmt.Fprintln(&b, "_No filled orders._")
		return b.String()
	}
	fmt.Fprintln(&b, "| Date | Ticker | Side | Quantity | Net value |")
	fmt.Fprintln(&b, "|:-----|:-------|:-----|---------:|----------:|")
	for _, f := range fills {
		date := "-"
		if f.FilledAt != nil {
			date = f.FilledAt.Format("2006-01-02 15:04")
		}
		net := "-"
		if f.NetValue.Valid {
			net = Money(f.NetValue.Decimal, f.Currency)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", date, escape(f.Ticker), f.Side, f.Quantity.String(), net)
	}
	return b.String()
}

// DatabasesMarkdown lists the configured Notion databases in order.
func DatabasesMarkdown(c notion.DatabaseConfig) string {
	var b strings.Builder
	fmt.Fprintln(&b, "# Notion databases")
	fmt.Fprintln(&b)
	if c.Len() == 0 {
		fmt.Fprintln(&b, "_None configured._")
		return b.String()
	}
	for _, name := range c.Names() {
		id, _ := c.ID(name)
		marker := ""
		if name == notion.DefaultDatabaseName {
			marker = " (default)"
		}
		fmt.Fprintf(&b, "- **%s**%s: `%s`\n", escape(name), marker, id)
	}
	return b.String()
}
