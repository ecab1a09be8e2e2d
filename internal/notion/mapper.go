package notion

import (
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property names read from the finance database.
const (
	PropAmount  = "Amount"
	PropType    = "Type"
	PropTags    = "Tags"
	PropCreated = "Created"
)

// PageToRecord maps a database page to a Record. Missing or mistyped
// properties leave the corresponding field zero.
func PageToRecord(page notionapi.Page) domain.Record {
	return domain.Record{
		ID:      string(page.ID),
		Kind:    domain.NewKind(extractSelect(page.Properties[PropType])),
		Amount:  extractNumber(page.Properties[PropAmount]),
		Tags:    extractMultiSelect(page.Properties[PropTags]),
		Created: extractDate(page.Properties[PropCreated]),
	}
}

// PagesToRecords maps every page in order.
func PagesToRecords(pages []notionapi.Page) []domain.Record {
	records := make([]domain.Record, 0, len(pages))
	for _, p := range pages {
		records = append(records, PageToRecord(p))
	}
	return records
}

func extractNumber(prop notionapi.Property) decimal.Decimal {
	if p, ok := prop.(*notionapi.NumberProperty); ok {
		return decimal.NewFromFloat(p.Number)
	}
	return decimal.Zero
}

func extractSelect(prop notionapi.Property) string {
	if p, ok := prop.(*notionapi.SelectProperty); ok {
		return p.Select.Name
	}
	return ""
}

func extractMultiSelect(prop notionapi.Property) []string {
	p, ok := prop.(*notionapi.MultiSelectProperty)
	if !ok {
		return []string{}
	}

	tags := make([]string, 0, len(p.MultiSelect))
	for _, o := range p.MultiSelect {
		tags = append(tags, o.Name)
	}
	return tags
}

func extractDate(prop notionapi.Property) *time.Time {
	p, ok := prop.(*notionapi.DateProperty)
	if !ok || p.Date == nil || p.Date.Start == nil {
		return nil
	}
	t := time.Time(*p.Date.Start)
	return &t
}

// AvailableTags lists the options of the Tags multi-select in schema order.
// Options without an id use their name; options without a color use "default".
func AvailableTags(db *notionapi.Database) []domain.Tag {
	if db == nil {
		return []domain.Tag{}
	}

	cfg, ok := db.Properties[PropTags].(*notionapi.MultiSelectPropertyConfig)
	if !ok {
		return []domain.Tag{}
	}

	tags := make([]domain.Tag, 0, len(cfg.MultiSelect.Options))
	for _, o := range cfg.MultiSelect.Options {
		tag := domain.Tag{
			ID:    string(o.ID),
			Name:  o.Name,
			Color: string(o.Color),
		}
		if tag.ID == "" {
			tag.ID = tag.Name
		}
		if tag.Color == "" {
			tag.Color = "default"
		}
		tags = append(tags, tag)
	}
	return tags
}
