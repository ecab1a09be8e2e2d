package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/auth"
)

// Handlers groups the endpoint handlers served by the router.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Notion     *handlers.NotionHandler
	Trading212 *handlers.Trading212Handler
	Snapshots  *handlers.SnapshotsHandler
	Jobs       *handlers.JobsHandler
}

// NewRouter registers every endpoint and wraps the router in the middleware
// chain: RequestID, Recovery, Logger, CORS, Auth. allowedOrigins lists the
// cross-origin callers that may send the session cookie.
func NewRouter(h Handlers, verifier *auth.Verifier, allowedOrigins []string, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Auth endpoints
	r.HandleFunc("/api/auth/verify", h.Auth.Verify).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/verify", h.Auth.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/logout", h.Auth.Logout).Methods(http.MethodPost)

	// Notion endpoints
	r.HandleFunc("/api/notion", h.Notion.GetDataset).Methods(http.MethodGet)
	r.HandleFunc("/api/notion/databases", h.Notion.ListDatabases).Methods(http.MethodGet)
	r.HandleFunc("/api/notion/summary", h.Notion.Summary).Methods(http.MethodGet)
	r.HandleFunc("/api/notion/monthly", h.Notion.Monthly).Methods(http.MethodGet)

	// Trading 212 endpoints
	r.HandleFunc("/api/trading212", h.Trading212.Positions).Methods(http.MethodGet)
	r.HandleFunc("/api/trading212/historical_orders", h.Trading212.HistoricalOrders).Methods(http.MethodGet)
	r.HandleFunc("/api/trading212/historical_dividends", h.Trading212.HistoricalDividends).Methods(http.MethodGet)
	r.HandleFunc("/api/trading212/summary", h.Trading212.Summary).Methods(http.MethodGet)

	// Snapshot and job endpoints
	r.HandleFunc("/api/snapshots", h.Snapshots.Enqueue).Methods(http.MethodPost)
	r.HandleFunc("/api/snapshots", h.Snapshots.List).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs", h.Jobs.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", h.Jobs.GetJob).Methods(http.MethodGet)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)

	return middleware.RequestID(
		middleware.Recovery(log)(
			middleware.Logger(log)(
				middleware.CORS(allowedOrigins)(
					middleware.Auth(verifier)(r),
				),
			),
		),
	)
}
