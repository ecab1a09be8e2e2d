// Package sources opens the upstream data sources described by the config.
package sources

import (
	"errors"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/notion"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
	"github.com/dvloznov/finance-dashboard/internal/trading212"
)

// ErrNotionNotConfigured is returned when NOTION_API_KEY is empty.
var ErrNotionNotConfigured = errors.New("missing NOTION_API_KEY")

// Notion creates a dataset loader for the configured databases.
func Notion(cfg *config.Config) (*notion.Loader, error) {
	if cfg.Notion.APIKey == "" {
		return nil, ErrNotionNotConfigured
	}
	databases, err := notion.ParseDatabaseConfig(cfg.Notion.DatabaseID)
	if err != nil {
		return nil, fmt.Errorf("sources.Notion: %w", err)
	}
	return notion.NewLoader(notion.NewNotionClient(cfg.Notion.APIKey, cfg.Notion.Retries), databases), nil
}

// Trading212 creates a brokerage client. It returns
// trading212.ErrMissingCredentials when the key pair is incomplete.
func Trading212(cfg *config.Config) (*trading212.Client, error) {
	c, err := trading212.NewClient(
		trading212.Credentials{
			APIKey:    cfg.Trading212.APIKey,
			APISecret: cfg.Trading212.APISecret,
		},
		trading212.Config{
			BaseURL:        cfg.Trading212.BaseURL,
			PageSize:       cfg.Trading212.PageSize,
			MaxRetries:     cfg.Trading212.MaxRetries,
			InitialBackoff: cfg.Trading212.InitialBackoff,
			PageDelay:      cfg.Trading212.PageDelay,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("sources.Trading212: %w", err)
	}
	return c, nil
}

// Set holds whichever sources could be opened. A nil field means the source
// is not configured.
type Set struct {
	Records snapshot.RecordSource
	Loader  *notion.Loader
	Broker  snapshot.Brokerage
}

// Open opens every source and collects the reasons the missing ones could
// not be opened.
func Open(cfg *config.Config) (Set, []error) {
	var (
		set  Set
		errs []error
	)

	if loader, err := Notion(cfg); err != nil {
		errs = append(errs, err)
	} else {
		set.Loader = loader
		set.Records = loader
	}

	if client, err := Trading212(cfg); err != nil {
		errs = append(errs, err)
	} else {
		set.Broker = client
	}
	return set, errs
}

// Builder creates a snapshot builder over the open sources.
func (s Set) Builder(cfg *config.Config) *snapshot.Builder {
	return snapshot.NewBuilder(s.Records, s.Broker, cfg.Trading212.SourceDelay)
}
