package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/paginate"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
)

// Trading212Handler handles the brokerage endpoints.
type Trading212Handler struct {
	broker  snapshot.Brokerage
	builder *snapshot.Builder
	log     zerolog.Logger
}

// NewTrading212Handler creates a new brokerage handler. A nil broker means
// the credentials are missing and every endpoint answers 500.
func NewTrading212Handler(broker snapshot.Brokerage, builder *snapshot.Builder, log zerolog.Logger) *Trading212Handler {
	return &Trading212Handler{
		broker:  broker,
		builder: builder,
		log:     log,
	}
}

func (h *Trading212Handler) configured(w http.ResponseWriter) bool {
	if h.broker == nil {
		middleware.WriteError(w, http.StatusInternalServerError,
			"Missing required environment variables: TRADING_212_API_KEY or TRADING_212_API_SECRET")
		return false
	}
	return true
}

// writeUpstreamError reports upstream failures with the upstream status.
func (h *Trading212Handler) writeUpstreamError(w http.ResponseWriter, err error, what string) {
	var upstream *paginate.UpstreamError
	var parse *paginate.ParseError
	switch {
	case errors.As(err, &upstream):
		h.log.Error().Err(err).Int("status", upstream.StatusCode).Msg("Trading 212 API error")
		middleware.WriteErrorDetails(w, upstream.StatusCode,
			fmt.Sprintf("Trading 212 API error: %d", upstream.StatusCode), upstream.Body)
	case errors.As(err, &parse):
		h.log.Error().Err(err).Msg("Invalid JSON response from Trading 212 API")
		middleware.WriteError(w, http.StatusInternalServerError, "Invalid JSON response from Trading 212 API")
	default:
		h.log.Error().Err(err).Msg("Failed to fetch Trading 212 " + what)
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Failed to fetch Trading 212 "+what, err.Error())
	}
}

// Positions handles GET /api/trading212
func (h *Trading212Handler) Positions(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	positions, err := h.broker.Positions(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err, "data")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": positions})
}

// HistoricalOrders handles GET /api/trading212/historical_orders
//
// filled=true keeps only filled orders, newest first.
func (h *Trading212Handler) HistoricalOrders(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	fills, err := h.broker.HistoricalOrders(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err, "historical orders")
		return
	}
	if r.URL.Query().Get("filled") == "true" {
		fills = aggregate.FilledOrders(fills)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": fills})
}

// HistoricalDividends handles GET /api/trading212/historical_dividends
func (h *Trading212Handler) HistoricalDividends(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	divs, err := h.broker.Dividends(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err, "historical dividends")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": divs})
}

// Summary handles GET /api/trading212/summary
//
// Positions, orders and dividends are fetched one after another. The Notion
// ledger is not involved.
func (h *Trading212Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	p, err := h.builder.Portfolio(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err, "summary")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"openPositions":        p.Open,
		"portfolioValue":       p.Value,
		"unrealizedProfitLoss": p.UnrealizedPL(),
		"closedPositions":      p.Closed,
		"closedTotals":         p.ClosedTotals,
	})
}
