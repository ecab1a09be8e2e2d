package paginate

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the upstream keeps answering 429 after all retries.
var ErrRateLimited = errors.New("rate limited: retries exhausted")

// UpstreamError reports a non-2xx answer. Body holds the raw response text.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream status %d: %v: %s", e.StatusCode, e.Err, e.Body)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ParseError reports a 2xx response whose body is not the expected JSON shape.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed response body: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
