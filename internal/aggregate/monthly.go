package aggregate

import (
	"sort"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

// MonthSummary is one calendar month of the series. CheckingAtEnd is the
// cumulative checking balance over every included record up to the month end.
type MonthSummary struct {
	Month           string          `json:"month"` // YYYY-MM
	Label           string          `json:"label"` // Jan 2024
	Income          decimal.Decimal `json:"income"`
	Expenditure     decimal.Decimal `json:"expenditure"`
	Master          decimal.Decimal `json:"master"`
	InvestmentBuys  decimal.Decimal `json:"investmentBuys"`
	InvestmentSells decimal.Decimal `json:"investmentSells"`
	InvestmentOther decimal.Decimal `json:"investmentOther"`
	Savings         decimal.Decimal `json:"savings"`
	CheckingAtEnd   decimal.Decimal `json:"checkingAtEnd"`
}

type dated struct {
	at time.Time
	r  domain.Record
}

// Monthly groups the included, dated records by calendar month in
// chronological order. Records without a date are skipped.
func Monthly(records []domain.Record, f Filter) []MonthSummary {
	var items []dated
	for _, r := range records {
		if r.Created == nil || !f.Include(r) {
			continue
		}
		items = append(items, dated{at: *r.Created, r: r})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.Before(items[j].at)
	})

	var (
		months []MonthSummary
		cum    MonthSummary
	)
	for _, it := range items {
		key := it.at.Format(monthLayout)
		if len(months) == 0 || months[len(months)-1].Month != key {
			months = append(months, MonthSummary{Month: key, Label: it.at.Format("Jan 2006")})
		}
		m := &months[len(months)-1]

		accumulate(m, it.r)
		accumulate(&cum, it.r)

		m.Savings = m.Income.Sub(m.Expenditure)
		m.CheckingAtEnd = checking(cum.Master, cum.Income, cum.Expenditure, cum.InvestmentSells, cum.InvestmentBuys, cum.InvestmentOther)
	}

	if months == nil {
		return []MonthSummary{}
	}
	return months
}

func accumulate(m *MonthSummary, r domain.Record) {
	switch r.Kind {
	case domain.KindIncome:
		m.Income = m.Income.Add(r.Amount)
	case domain.KindExpenditure:
		m.Expenditure = m.Expenditure.Add(r.Amount.Abs())
	case domain.KindMaster:
		m.Master = m.Master.Add(r.Amount)
	case domain.KindInvestment:
		switch {
		case r.HasTag(domain.TagBuy):
			m.InvestmentBuys = m.InvestmentBuys.Add(r.Amount.Abs())
		case r.HasTag(domain.TagSell):
			m.InvestmentSells = m.InvestmentSells.Add(r.Amount.Abs())
		default:
			m.InvestmentOther = m.InvestmentOther.Add(r.Amount)
		}
	}
}

// MaxRecentMonths bounds the window RecentMonths builds.
const MaxRecentMonths = 120

// RecentMonths returns exactly n months ending with the month of now, oldest
// first, including months without records. Only the month's own records count;
// CheckingAtEnd is left zero. n is capped at MaxRecentMonths.
func RecentMonths(records []domain.Record, f Filter, n int, now time.Time) []MonthSummary {
	if n <= 0 {
		return []MonthSummary{}
	}
	if n > MaxRecentMonths {
		n = MaxRecentMonths
	}

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(n - 1), 0)
	months := make([]MonthSummary, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i, 0)
		months[i] = MonthSummary{Month: m.Format(monthLayout), Label: m.Format("Jan 2006")}
		index[months[i].Month] = i
	}

	for _, r := range records {
		if r.Created == nil || !f.Include(r) {
			continue
		}
		i, ok := index[r.Created.Format(monthLayout)]
		if !ok {
			continue
		}
		accumulate(&months[i], r)
	}

	for i := range months {
		months[i].Savings = months[i].Income.Sub(months[i].Expenditure)
	}
	return months
}
