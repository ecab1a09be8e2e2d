package aggregate

import (
	"sort"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Ledger holds the totals of one aggregation pass over the records.
type Ledger struct {
	Income          decimal.Decimal `json:"income"`
	Expenditure     decimal.Decimal `json:"expenditure"`
	Master          decimal.Decimal `json:"master"`
	InvestmentBuys  decimal.Decimal `json:"investmentBuys"`
	InvestmentSells decimal.Decimal `json:"investmentSells"`
	InvestmentOther decimal.Decimal `json:"investmentOther"`
	NetWorth        decimal.Decimal `json:"netWorth"`
	Checking        decimal.Decimal `json:"checking"`
	Cashflow        decimal.Decimal `json:"cashflow"`
	Records         int             `json:"records"`

	IncomeByTag      map[string]decimal.Decimal `json:"incomeByTag"`
	ExpenditureByTag map[string]decimal.Decimal `json:"expenditureByTag"`
}

// checking is master + income - expenditure + investment sells - investment buys + other investment.
func checking(master, income, expenditure, sells, buys, other decimal.Decimal) decimal.Decimal {
	return master.
		Add(income).
		Sub(expenditure).
		Add(sells).
		Sub(buys).
		Add(other)
}

// TagShare is one row of a per-tag breakdown.
type TagShare struct {
	Tag        string          `json:"tag"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

func (l Ledger) IncomeBreakdown() []TagShare {
	return breakdown(l.IncomeByTag, l.Income)
}

func (l Ledger) ExpenditureBreakdown() []TagShare {
	return breakdown(l.ExpenditureByTag, l.Expenditure)
}

func breakdown(byTag map[string]decimal.Decimal, total decimal.Decimal) []TagShare {
	shares := make([]TagShare, 0, len(byTag))
	for tag, amount := range byTag {
		shares = append(shares, TagShare{
			Tag:        tag,
			Amount:     amount,
			Percentage: Percent(amount, total),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if c := shares[i].Amount.Cmp(shares[j].Amount); c != 0 {
			return c > 0
		}
		return shares[i].Tag < shares[j].Tag
	})
	return shares
}

// Summarize reduces the records passing f into a Ledger.
func Summarize(records []domain.Record, f Filter) Ledger {
	l := Ledger{
		IncomeByTag:      make(map[string]decimal.Decimal),
		ExpenditureByTag: make(map[string]decimal.Decimal),
	}

	for _, r := range records {
		if !f.Include(r) {
			continue
		}
		l.Records++

		switch r.Kind {
		case domain.KindIncome:
			l.Income = l.Income.Add(r.Amount)
			addByTag(l.IncomeByTag, r.Tags, r.Amount, f)
		case domain.KindExpenditure:
			abs := r.Amount.Abs()
			l.Expenditure = l.Expenditure.Add(abs)
			addByTag(l.ExpenditureByTag, r.Tags, abs, f)
		case domain.KindMaster:
			l.Master = l.Master.Add(r.Amount)
		case domain.KindInvestment:
			switch {
			case r.HasTag(domain.TagBuy):
				l.InvestmentBuys = l.InvestmentBuys.Add(r.Amount.Abs())
			case r.HasTag(domain.TagSell):
				l.InvestmentSells = l.InvestmentSells.Add(r.Amount.Abs())
			default:
				l.InvestmentOther = l.InvestmentOther.Add(r.Amount)
			}
		}

		l.NetWorth = l.NetWorth.Add(r.Amount)
	}

	l.Checking = checking(l.Master, l.Income, l.Expenditure, l.InvestmentSells, l.InvestmentBuys, l.InvestmentOther)
	l.Cashflow = l.Income.Sub(l.Expenditure)
	return l
}

func addByTag(byTag map[string]decimal.Decimal, tags []string, amount decimal.Decimal, f Filter) {
	for _, t := range tags {
		if f.Excluded(t) {
			continue
		}
		byTag[t] = byTag[t].Add(amount)
	}
}
