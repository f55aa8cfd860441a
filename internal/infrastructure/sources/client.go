package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// restClient is the shared HTTP plumbing for the three source adapters: one
// pooled http.Client per source, retry per RetryPolicy, and a uniform
// not-found convention.  A 404 is data, not an error; callers get
// (found=false, err=nil) and decide what that means for their lookup.
type restClient struct {
	source  string
	baseURL string
	http    *http.Client
	retry   RetryPolicy
	logger  logging.Logger
}

func newRESTClient(source, baseURL string, timeout time.Duration, retry RetryPolicy, logger logging.Logger) *restClient {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &restClient{
		source:  source,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:  retry,
		logger: logger.Named(source),
	}
}

// getJSON performs a GET with retries and decodes a 2xx body into out.
// Returns found=false with a nil error on 404 or on a non-retryable client
// error (the source has no data for this query); returns a non-nil error
// only when the source itself failed: retries exhausted on rate limiting,
// server errors, network errors, or an undecodable body.
func (c *restClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) (bool, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var lastErr error
	var nextWait time.Duration

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("retrying source request",
				logging.String("url", fullURL),
				logging.Int("attempt", attempt),
				logging.Duration("wait", nextWait))
			select {
			case <-time.After(nextWait):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
		nextWait = c.retry.Backoff(attempt)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return false, errors.Wrap(err, errors.ErrCodeSourceUnavailable,
				fmt.Sprintf("%s: building request", c.source))
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.logger.Warn("source request failed",
				logging.String("url", fullURL),
				logging.Int("attempt", attempt),
				logging.Err(err))
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.logger.Debug("source response",
			logging.String("url", fullURL),
			logging.Int("status", resp.StatusCode),
			logging.Duration("elapsed", time.Since(start)))
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return false, nil

		case resp.StatusCode == http.StatusOK:
			if out != nil && len(body) > 0 {
				if err := json.Unmarshal(body, out); err != nil {
					return false, errors.Wrap(err, errors.ErrCodeSourceParseError,
						fmt.Sprintf("%s: decoding response", c.source))
				}
			}
			return true, nil

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return false, errors.New(errors.ErrCodeSourceAuthFailed,
				fmt.Sprintf("%s: status %d", c.source, resp.StatusCode))

		case resp.StatusCode == http.StatusTooManyRequests:
			nextWait = c.retry.RetryAfter(resp.Header.Get("Retry-After"), attempt)
			lastErr = errors.New(errors.ErrCodeSourceRateLimited,
				fmt.Sprintf("%s: rate limited", c.source))

		case c.retry.ShouldRetry(resp.StatusCode, nil):
			lastErr = errors.New(errors.ErrCodeSourceUnavailable,
				fmt.Sprintf("%s: status %d", c.source, resp.StatusCode))

		default:
			// Unexpected but non-retryable status: treat as no data.
			c.logger.Warn("unexpected source status",
				logging.String("url", fullURL),
				logging.Int("status", resp.StatusCode))
			return false, nil
		}
	}

	if lastErr == nil {
		lastErr = errors.New(errors.ErrCodeSourceUnavailable, c.source+": retries exhausted")
	}
	if appErr, ok := lastErr.(*errors.AppError); ok {
		return false, appErr
	}
	return false, errors.Wrap(lastErr, errors.ErrCodeSourceUnavailable,
		fmt.Sprintf("%s: retries exhausted", c.source))
}

// escapeQuoted escapes double quotes for embedding a term inside a quoted
// search expression.
func escapeQuoted(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
