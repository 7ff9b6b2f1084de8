// Package probe polls a collaborator HTTP endpoint until it reports ready.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ReadinessTimeoutError reports that the endpoint never returned a success
// response within the allotted time. LastErr holds the final request error
// or nil when the endpoint answered with non-2xx statuses.
type ReadinessTimeoutError struct {
	URL     string
	Timeout time.Duration
	LastErr error
}

func (e *ReadinessTimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("readiness: %s not ready after %s: %v", e.URL, e.Timeout, e.LastErr)
	}
	return fmt.Sprintf("readiness: %s not ready after %s", e.URL, e.Timeout)
}

func (e *ReadinessTimeoutError) Unwrap() error { return e.LastErr }

// WaitForReady polls url with GET requests every interval until a 2xx
// response, the timeout elapses, or ctx is cancelled. On expiry it returns a
// ReadinessTimeoutError; the scheduler records that as the job's failure.
func WaitForReady(ctx context.Context, client *http.Client, url string, timeout, interval time.Duration) error {
	if client == nil {
		client = http.DefaultClient
	}
	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := check(ctx, client, url)
		if ok {
			return nil
		}
		if err != nil && ctx.Err() == nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return &ReadinessTimeoutError{URL: url, Timeout: timeout, LastErr: lastErr}
		case <-ticker.C:
		}
	}
}

func check(ctx context.Context, client *http.Client, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
