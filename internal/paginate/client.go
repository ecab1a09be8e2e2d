package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
	DefaultPageDelay      = 200 * time.Millisecond
	defaultTimeout        = 30 * time.Second
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestEditor mutates an outgoing request, e.g. to add auth headers.
type RequestEditor func(ctx context.Context, req *http.Request) error

// Client fetches JSON resources from one base URL, retrying 429 answers with
// exponential backoff and pacing consecutive page requests.
type Client struct {
	baseURL        string
	http           Doer
	editors        []RequestEditor
	maxRetries     int
	initialBackoff time.Duration
	pacer          *rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

func WithRequestEditor(e RequestEditor) Option {
	return func(c *Client) { c.editors = append(c.editors, e) }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.initialBackoff = d
		}
	}
}

// WithPageDelay sets the minimum spacing between page requests. Zero disables pacing.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) { c.pacer = newPacer(d) }
}

// NewClient creates a Client for baseURL. Paths passed to FetchAll and GetJSON
// and upstream nextPagePath values are appended to it verbatim.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: defaultTimeout},
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		pacer:          newPacer(DefaultPageDelay),
		sleep:          sleepContext,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON fetches a single resource and decodes it into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.get(ctx, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("GetJSON: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GetJSON: %w", &ParseError{Body: string(body), Err: err})
	}
	return nil
}

// get performs a GET with the 429 retry policy and returns the body of a 2xx answer.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	log := logger.FromContext(ctx)

	for retry := 0; ; retry++ {
		status, body, retryAfter, err := c.attempt(ctx, url, retry)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusTooManyRequests:
			if retry >= c.maxRetries {
				return nil, &UpstreamError{StatusCode: status, Body: string(body), Err: ErrRateLimited}
			}

			delay := backoff(c.initialBackoff, retry)
			if retryAfter > delay {
				delay = retryAfter
			}

			log.Warn().
				Str("url", url).
				Int("attempt", retry+1).
				Dur("delay", delay).
				Msg("Rate limited, retrying")

			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		case status < http.StatusOK || status >= http.StatusMultipleChoices:
			return nil, &UpstreamError{StatusCode: status, Body: string(body)}
		default:
			return body, nil
		}
	}
}

func (c *Client) attempt(ctx context.Context, url string, retry int) (int, []byte, time.Duration, error) {
	ctx, span := trace.StartSpan(ctx, "paginate.get")
	defer span.End()
	span.SetAttributes(attribute.String("url", url), attribute.Int("attempt", retry+1))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for _, edit := range c.editors {
		if err := edit(ctx, req); err != nil {
			return 0, nil, 0, fmt.Errorf("edit request: %w", err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return 0, nil, 0, ctxErr
		}
		return 0, nil, 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}

	span.SetAttributes(attribute.Int("status", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
	}

	return resp.StatusCode, body, RetryAfter(resp, c.now()), nil
}
