package health

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPChecker probes a URL with a GET request. 2xx is Healthy, any other
// status is Unhealthy, a connection error is Unhealthy, and a request-level
// timeout is reported as Timeout.
type HTTPChecker struct {
	URL     string
	Timeout time.Duration
}

func (c *HTTPChecker) Describe() string { return "http " + c.URL }

func (c *HTTPChecker) Check(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Unhealthy, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Timeout, ctx.Err()
		}
		return Unhealthy, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Healthy, nil
	}
	return Unhealthy, nil
}
