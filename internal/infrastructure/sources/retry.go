// Package sources holds the adapters for the three external knowledge
// sources: the FDA drug registry, the RxNorm nomenclature service, and the
// GSRS chemical-substance registry.  Each adapter is stateless and safe for
// concurrent use; retry and rate-limit handling is centralized in a shared
// RetryPolicy rather than scattered per client.
package sources

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/config"
)

// RetryPolicy decides which responses are worth retrying and how long to
// wait between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewRetryPolicy builds a policy from configuration, falling back to the
// package defaults for unset values.
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = config.DefaultRetryMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = config.DefaultRetryBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = config.DefaultRetryMaxDelay
	}
	return p
}

// ShouldRetry reports whether another attempt is warranted.  Network errors,
// rate limiting and server-side failures are transient; any other client
// error is not.
func (p RetryPolicy) ShouldRetry(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// Backoff returns the wait before the given attempt (1-based), exponential
// from BaseDelay, capped at MaxDelay, with up to 25% jitter added so that
// concurrent enrichments do not hammer a recovering source in lockstep.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := p.BaseDelay * time.Duration(1<<uint(attempt-1))
	if backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
	return backoff + jitter
}

// RetryAfter resolves the wait for a rate-limited response, honoring the
// Retry-After header when the server sends one.
func (p RetryPolicy) RetryAfter(header string, attempt int) time.Duration {
	if header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return p.Backoff(attempt)
}
