package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/notion"
)

// DatasetLoader loads Notion datasets. *notion.Loader satisfies it.
type DatasetLoader interface {
	Load(ctx context.Context, param string) (*notion.Dataset, error)
	Databases() notion.DatabaseConfig
}

// NotionHandler handles the ledger endpoints backed by Notion.
type NotionHandler struct {
	loader DatasetLoader
	log    zerolog.Logger
	now    func() time.Time
}

// NewNotionHandler creates a new Notion handler. A nil loader means Notion is
// not configured and every endpoint answers 500.
func NewNotionHandler(loader DatasetLoader, log zerolog.Logger) *NotionHandler {
	return &NotionHandler{
		loader: loader,
		log:    log,
		now:    time.Now,
	}
}

func (h *NotionHandler) load(w http.ResponseWriter, r *http.Request) (*notion.Dataset, bool) {
	if h.loader == nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Missing required environment variables")
		return nil, false
	}

	param := r.URL.Query().Get("databaseId")
	ds, err := h.loader.Load(r.Context(), param)
	if err != nil {
		h.log.Error().Err(err).Str("database_id", param).Msg("Failed to fetch Notion data")
		msg := "Failed to fetch Notion data"
		for _, cfgErr := range []error{notion.ErrNoDatabases, notion.ErrInvalidDatabaseConfig, notion.ErrNoDatabaseID} {
			if errors.Is(err, cfgErr) {
				msg = cfgErr.Error()
				break
			}
		}
		middleware.WriteError(w, http.StatusInternalServerError, msg)
		return nil, false
	}
	return ds, true
}

// GetDataset handles GET /api/notion
func (h *NotionHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.load(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ds)
}

// ListDatabases handles GET /api/notion/databases
func (h *NotionHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil || h.loader.Databases().Len() == 0 {
		middleware.WriteError(w, http.StatusInternalServerError, "NOTION_DATABASE_ID environment variable is not configured")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"databases": h.loader.Databases(),
	})
}

// Summary handles GET /api/notion/summary
func (h *NotionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, ok := h.load(w, r)
	if !ok {
		return
	}

	ledger := aggregate.Summarize(ds.Records, f)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"databaseId":           ds.DatabaseID,
		"ledger":               ledger,
		"incomeBreakdown":      ledger.IncomeBreakdown(),
		"expenditureBreakdown": ledger.ExpenditureBreakdown(),
	})
}

// Monthly handles GET /api/notion/monthly
//
// With recent=N the response holds the last N calendar months up to today,
// including months without records. N is limited to
// aggregate.MaxRecentMonths.
func (h *NotionHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	recent := intParam(r, "recent", 0)
	if recent > aggregate.MaxRecentMonths {
		middleware.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("recent must be at most %d", aggregate.MaxRecentMonths))
		return
	}

	ds, ok := h.load(w, r)
	if !ok {
		return
	}

	var months []aggregate.MonthSummary
	if recent > 0 {
		months = aggregate.RecentMonths(ds.Records, f, recent, h.now())
	} else {
		months = aggregate.Monthly(ds.Records, f)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"databaseId": ds.DatabaseID,
		"months":     months,
	})
}
