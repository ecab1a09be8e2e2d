package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/trace"
	"go.opentelemetry.io/otel/attribute"
)

// page is the envelope of a cursor-paginated listing.
type page struct {
	Items        json.RawMessage `json:"items"`
	NextPagePath *string         `json:"nextPagePath"`
}

// FetchAll walks every page of the listing at path, requesting limit items per
// page, and returns all items in request order. A page without an items array
// ends the walk with what has been collected. Items that do not decode into T
// are logged and skipped; the rest of the page is kept.
func FetchAll[T any](ctx context.Context, c *Client, path string, limit int) ([]T, error) {
	ctx, span := trace.StartSpan(ctx, "paginate.fetch_all")
	defer span.End()
	span.SetAttributes(attribute.String("path", path), attribute.Int("limit", limit))

	log := logger.FromContext(ctx)

	next, err := firstPageURL(c.baseURL+path, limit)
	if err != nil {
		return nil, fmt.Errorf("FetchAll: %w", err)
	}

	var all []T
	seen := make(map[string]bool)
	for pageNo := 1; next != ""; pageNo++ {
		if seen[next] {
			log.Warn().Str("url", next).Msg("Cursor repeated, stopping pagination")
			break
		}
		seen[next] = true

		if err := c.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("FetchAll: %w", err)
		}

		body, err := c.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("FetchAll: page %d: %w", pageNo, err)
		}

		p, err := decodePage(body)
		if err != nil {
			return nil, fmt.Errorf("FetchAll: page %d: %w", pageNo, err)
		}
		if p.Items == nil {
			log.Warn().
				Str("path", path).
				Int("page", pageNo).
				Msg("Response has no items array, stopping pagination")
			break
		}

		var raw []json.RawMessage
		if err := json.Unmarshal(p.Items, &raw); err != nil {
			return nil, fmt.Errorf("FetchAll: page %d: %w", pageNo, &ParseError{Body: string(body), Err: err})
		}
		skipped := 0
		for i, elem := range raw {
			var item T
			if err := json.Unmarshal(elem, &item); err != nil {
				skipped++
				log.Warn().
					Err(err).
					Str("path", path).
					Int("page", pageNo).
					Int("index", i).
					Msg("Skipping malformed item")
				continue
			}
			all = append(all, item)
		}

		log.Debug().
			Str("path", path).
			Int("page", pageNo).
			Int("items", len(raw)-skipped).
			Int("skipped", skipped).
			Msg("Fetched page")

		next = ""
		if p.NextPagePath != nil && *p.NextPagePath != "" {
			next = c.baseURL + *p.NextPagePath
		}
	}

	span.SetAttributes(attribute.Int("items", len(all)))
	return all, nil
}

func decodePage(body []byte) (page, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("body is null")
		}
		return page{}, &ParseError{Body: string(body), Err: err}
	}

	var p page
	if raw, ok := fields["items"]; ok && string(raw) != "null" {
		p.Items = raw
	}
	if raw, ok := fields["nextPagePath"]; ok {
		if err := json.Unmarshal(raw, &p.NextPagePath); err != nil {
			return page{}, &ParseError{Body: string(body), Err: fmt.Errorf("nextPagePath: %w", err)}
		}
	}
	return p, nil
}

func firstPageURL(raw string, limit int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if limit > 0 {
		q := u.Query()
		q.Set("limit", strconv.Itoa(limit))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
