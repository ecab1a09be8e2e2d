package paginate

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// backoff returns initial * 2^retry.
func backoff(initial time.Duration, retry int) time.Duration {
	return initial << uint(retry)
}

// RetryAfter parses the Retry-After header as whole seconds or an HTTP date.
// It returns 0 when the header is absent or unparseable.
func RetryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}

	after := resp.Header.Get("Retry-After")
	if after == "" {
		return 0
	}

	if sec, err := strconv.ParseInt(after, 10, 32); err == nil {
		return time.Duration(sec) * time.Second
	}

	if when, err := http.ParseTime(after); err == nil {
		return when.Sub(now)
	}

	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
