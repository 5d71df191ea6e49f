package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPOptions configures the HTTP clients shared by the remote fetchers.
type HTTPOptions struct {
	Proxy      string
	Timeout    time.Duration
	MaxRetries int
	// BaseBackoff is the first retry delay; it doubles on every attempt.
	BaseBackoff time.Duration
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.BaseBackoff == 0 {
		o.BaseBackoff = time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(opts HTTPOptions) *http.Client {
	transport := &http.Transport{}
	if opts.Proxy != "" {
		if u, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
}

// statusError is returned for non-200 responses.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d, body: %s", e.Code, e.Body)
}

func (e *statusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// getWithRetry performs a GET and returns the body, retrying transport errors,
// 429 and 5xx responses with exponential backoff.
func getWithRetry(ctx context.Context, client *http.Client, endpoint string, header http.Header, opts HTTPOptions) ([]byte, error) {
	var lastErr error
	for i := 0; i <= opts.MaxRetries; i++ {
		body, err := get(ctx, client, endpoint, header)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i == opts.MaxRetries {
			break
		}
		backoff := opts.BaseBackoff * time.Duration(1<<uint(i))
		logrus.WithField("url", redact(endpoint)).Warnf("fetch failed (attempt %d/%d): %v, retrying in %v", i+1, opts.MaxRetries+1, err, backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", opts.MaxRetries+1, lastErr)
}

func get(ctx context.Context, client *http.Client, endpoint string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// redact hides api keys from logged URLs.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	for _, k := range []string{"api_key", "apikey", "api_token", "token"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
