package trading212

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/finance-dashboard/internal/paginate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Credentials{APIKey: "key", APISecret: "secret"}, Config{
		BaseURL:   srv.URL,
		PageDelay: -1,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(Credentials{APIKey: "key"}, Config{})
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestCredentials_AuthHeader(t *testing.T) {
	c := Credentials{APIKey: "abc", APISecret: "def"}
	assert.Equal(t, "Basic YWJjOmRlZg==", c.AuthHeader())
}

func TestClient_Positions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(portfolioPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ticker":"AAPL","quantity":1,"currentPrice":100},{"ticker":"MSFT","quantity":2,"currentPrice":50}]`))
	})

	positions, err := newTestClient(t, mux).Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Ticker)
	assert.Equal(t, "MSFT", positions[1].Ticker)
}

func TestClient_HistoricalOrders_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ordersPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			assert.Equal(t, "20", r.URL.Query().Get("limit"))
			w.Write([]byte(`{"items":[{"order":{"id":1,"status":"FILLED","side":"BUY","ticker":"A"},"fill":{"walletImpact":{"netValue":-10}}}],
				"nextPagePath":"/api/v0/equity/history/orders?limit=20&cursor=1"}`))
			return
		}
		w.Write([]byte(`{"items":[{"order":{"id":2,"status":"FILLED","side":"SELL","ticker":"A"},"fill":{"walletImpact":{"netValue":12}}}],"nextPagePath":null}`))
	})

	fills, err := newTestClient(t, mux).HistoricalOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "1", fills[0].OrderID)
	assert.Equal(t, "2", fills[1].OrderID)
}

func TestClient_HistoricalOrders_BadRecordAmongGood(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ordersPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[
			{"order":{"id":1,"status":"FILLED","side":"BUY","ticker":"A","quantity":"n/a"},"fill":{"walletImpact":{"netValue":"abc"}}},
			{"order":{"id":true}},
			{"order":{"id":3,"status":"FILLED","side":"SELL","ticker":"A"},"fill":{"walletImpact":{"netValue":12}}}
		],"nextPagePath":null}`))
	})

	fills, err := newTestClient(t, mux).HistoricalOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, fills, 2)

	assert.Equal(t, "1", fills[0].OrderID)
	assert.False(t, fills[0].NetValue.Valid)
	assert.True(t, fills[0].Quantity.IsZero())

	assert.Equal(t, "3", fills[1].OrderID)
	require.True(t, fills[1].NetValue.Valid)
	assert.Equal(t, "12", fills[1].NetValue.Decimal.String())
}

func TestClient_Positions_BadNumber(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(portfolioPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ticker":"AAPL","quantity":1,"currentPrice":{"amount":5}},{"ticker":"MSFT","quantity":2,"currentPrice":50}]`))
	})

	positions, err := newTestClient(t, mux).Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.True(t, positions[0].CurrentPrice.IsZero())
	assert.Equal(t, "100", positions[1].Value.String())
}

func TestClient_Dividends(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(dividendsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"ticker":"A","amountInEuro":1.5},{"ticker":"B","amountInEuro":2}]}`))
	})

	divs, err := newTestClient(t, mux).Dividends(context.Background())
	require.NoError(t, err)
	assert.Len(t, divs, 2)
}

func TestClient_UpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(dividendsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":"forbidden"}`))
	})

	_, err := newTestClient(t, mux).Dividends(context.Background())
	var upstream *paginate.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
}
