package notion

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/trace"
	"github.com/jomei/notionapi"
	"go.opentelemetry.io/otel/attribute"
)

const pageSize = 100

// QueryAllPages pages through a database with the cursor until has_more is false.
func QueryAllPages(ctx context.Context, svc NotionService, databaseID string) ([]notionapi.Page, error) {
	ctx, span := trace.StartSpan(ctx, "notion.query_all")
	defer span.End()
	span.SetAttributes(attribute.String("database_id", databaseID))
	log := logger.FromContext(ctx)

	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for batch := 1; ; batch++ {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: pageSize,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("QueryAllPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor

		log.Debug().
			Str("database_id", databaseID).
			Int("batch", batch).
			Int("pages", len(allPages)).
			Msg("Fetching next Notion batch")
	}

	span.SetAttributes(attribute.Int("pages", len(allPages)))
	return allPages, nil
}
