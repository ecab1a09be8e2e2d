package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// Filter selects the records that take part in an aggregation.
type Filter struct {
	// ExcludedTags holds tag names, matched exactly.
	ExcludedTags map[string]bool
	// Start and End bound the record date by calendar day, both inclusive.
	// A nil bound is open.
	Start *time.Time
	End   *time.Time
}

// NewFilter builds a filter from a tag list and optional bounds.
func NewFilter(excluded []string, start, end *time.Time) Filter {
	f := Filter{Start: start, End: end}
	if len(excluded) > 0 {
		f.ExcludedTags = make(map[string]bool, len(excluded))
		for _, t := range excluded {
			f.ExcludedTags[t] = true
		}
	}
	return f
}

// DateLayout is the format of the start and end bounds in requests.
const DateLayout = "2006-01-02"

// ParseFilter builds a filter from request values. Each excluded entry may
// hold several comma separated tags; empty names are dropped.
func ParseFilter(excluded []string, start, end string) (Filter, error) {
	var tags []string
	for _, e := range excluded {
		for _, t := range strings.Split(e, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	from, err := parseBound(start)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid start date: %w", err)
	}
	to, err := parseBound(end)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid end date: %w", err)
	}
	return NewFilter(tags, from, to), nil
}

func parseBound(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Include reports whether r passes the date window and the tag rule.
// Records without a date always pass the date window; records without tags
// always pass the tag rule.
func (f Filter) Include(r domain.Record) bool {
	return f.inWindow(r.Created) && f.tagsAllowed(r.Tags)
}

// Excluded reports whether a single tag is excluded.
func (f Filter) Excluded(tag string) bool {
	return f.ExcludedTags[tag]
}

func (f Filter) tagsAllowed(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if !f.ExcludedTags[t] {
			return true
		}
	}
	return false
}

func (f Filter) inWindow(at *time.Time) bool {
	if at == nil {
		return true
	}
	day := civilDay(*at)
	if f.Start != nil && day < civilDay(*f.Start) {
		return false
	}
	if f.End != nil && day > civilDay(*f.End) {
		return false
	}
	return true
}

// civilDay orders dates by year, month and day in their own location.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
