package trading212

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/paginate"
)

const (
	DefaultBaseURL  = "https://live.trading212.com"
	DefaultPageSize = 20

	portfolioPath = "/api/v0/equity/portfolio"
	ordersPath    = "/api/v0/equity/history/orders"
	dividendsPath = "/api/v0/equity/history/dividends"
)

// ErrMissingCredentials is returned when the API key or secret is empty.
var ErrMissingCredentials = errors.New("missing TRADING_212_API_KEY or TRADING_212_API_SECRET")

// Credentials are the key pair used for HTTP Basic auth.
type Credentials struct {
	APIKey    string
	APISecret string
}

// AuthHeader returns the Authorization header value.
func (c Credentials) AuthHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.APIKey+":"+c.APISecret))
}

func (c Credentials) valid() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// Config holds the client settings. Zero values fall back to defaults; a
// negative PageDelay disables pacing and a negative MaxRetries disables retries.
type Config struct {
	BaseURL        string
	PageSize       int
	MaxRetries     int
	InitialBackoff time.Duration
	PageDelay      time.Duration
	HTTPClient     paginate.Doer
}

// Client reads positions, order history and dividends from the brokerage API.
type Client struct {
	api      *paginate.Client
	pageSize int
}

// NewClient creates a brokerage client. It fails when credentials are missing.
func NewClient(creds Credentials, cfg Config) (*Client, error) {
	if !creds.valid() {
		return nil, ErrMissingCredentials
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = paginate.DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	switch {
	case cfg.PageDelay == 0:
		cfg.PageDelay = paginate.DefaultPageDelay
	case cfg.PageDelay < 0:
		cfg.PageDelay = 0
	}

	header := creds.AuthHeader()
	opts := []paginate.Option{
		paginate.WithRequestEditor(func(ctx context.Context, req *http.Request) error {
			req.Header.Set("Authorization", header)
			return nil
		}),
		paginate.WithMaxRetries(cfg.MaxRetries),
		paginate.WithInitialBackoff(cfg.InitialBackoff),
		paginate.WithPageDelay(cfg.PageDelay),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, paginate.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:      paginate.NewClient(cfg.BaseURL, opts...),
		pageSize: cfg.PageSize,
	}, nil
}

// Positions returns the open positions.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var raw []RawPosition
	if err := c.api.GetJSON(ctx, portfolioPath, &raw); err != nil {
		return nil, fmt.Errorf("Positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, NormalizePosition(p))
	}
	return positions, nil
}

// HistoricalOrders returns every historical order across all pages.
func (c *Client) HistoricalOrders(ctx context.Context) ([]domain.Fill, error) {
	raw, err := paginate.FetchAll[RawHistoricalOrder](ctx, c.api, ordersPath, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("HistoricalOrders: %w", err)
	}

	fills := make([]domain.Fill, 0, len(raw))
	for _, o := range raw {
		fills = append(fills, NormalizeOrder(o))
	}
	return fills, nil
}

// Dividends returns every dividend payment across all pages.
func (c *Client) Dividends(ctx context.Context) ([]domain.Dividend, error) {
	raw, err := paginate.FetchAll[RawDividend](ctx, c.api, dividendsPath, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("Dividends: %w", err)
	}

	divs := make([]domain.Dividend, 0, len(raw))
	for _, d := range raw {
		divs = append(divs, NormalizeDividend(d))
	}
	return divs, nil
}
