package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a ledger record. Values other than the constants below are
// kept verbatim (lowercased) and contribute only to net worth.
type Kind string

const (
	KindIncome      Kind = "income"
	KindExpenditure Kind = "expenditure"
	KindMaster      Kind = "master"
	KindInvestment  Kind = "investment"
)

// Investment direction tags, matched case-insensitively.
const (
	TagBuy  = "buy"
	TagSell = "sell"
)

// Record represents one normalized ledger entry read from the Notion database.
type Record struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
	Tags    []string        `json:"tags"`
	Created *time.Time      `json:"created,omitempty"` // nil when the page has no date
}

// NewKind lowercases a raw select value into a Kind.
func NewKind(raw string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(raw)))
}

// HasTag reports whether the record carries the tag, ignoring case.
func (r Record) HasTag(name string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// Tag is a selectable tag option from the database schema.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}
