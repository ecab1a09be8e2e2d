package notion

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/jomei/notionapi"
)

// Dataset is one database's records plus its tag vocabulary.
type Dataset struct {
	DatabaseID string          `json:"databaseId"`
	Title      string          `json:"title,omitempty"`
	Tags       []domain.Tag    `json:"tags"`
	Records    []domain.Record `json:"records"`
}

// Loader reads datasets from the configured databases.
type Loader struct {
	svc       NotionService
	databases DatabaseConfig
}

func NewLoader(svc NotionService, databases DatabaseConfig) *Loader {
	return &Loader{svc: svc, databases: databases}
}

// Databases returns the configured name to id mapping.
func (l *Loader) Databases() DatabaseConfig {
	return l.databases
}

// Load resolves param to a database id, reads the schema and every page.
func (l *Loader) Load(ctx context.Context, param string) (*Dataset, error) {
	databaseID, err := ResolveDatabaseID(l.databases, param)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	log := logger.FromContext(ctx).With().Str("database_id", databaseID).Logger()

	db, err := l.svc.GetDatabase(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	pages, err := QueryAllPages(ctx, l.svc, databaseID)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	ds := &Dataset{
		DatabaseID: databaseID,
		Title:      databaseTitle(db.Title),
		Tags:       AvailableTags(db),
		Records:    PagesToRecords(pages),
	}
	if len(ds.Tags) == 0 {
		log.Warn().Msg("Tags property not found or is not a multi_select")
	}

	log.Info().Int("records", len(ds.Records)).Int("tags", len(ds.Tags)).Msg("Loaded Notion dataset")
	return ds, nil
}

func databaseTitle(parts []notionapi.RichText) string {
	var title string
	for _, p := range parts {
		title += p.PlainText
	}
	return title
}
