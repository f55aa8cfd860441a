package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiter_Allow(t *testing.T) {
	limiter := NewTokenBucketLimiter(10, 2, 0)

	allowed, info := limiter.Allow("client-a")
	assert.True(t, allowed)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 1, info.Remaining)

	allowed, info = limiter.Allow("client-a")
	assert.True(t, allowed)
	assert.Equal(t, 0, info.Remaining)

	allowed, _ = limiter.Allow("client-a")
	assert.False(t, allowed, "burst exhausted")
}

func TestTokenBucketLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, 0)

	allowed, _ := limiter.Allow("client-a")
	require.True(t, allowed)
	allowed, _ = limiter.Allow("client-a")
	require.False(t, allowed)

	allowed, _ = limiter.Allow("client-b")
	assert.True(t, allowed, "a separate key has its own bucket")
}

func TestTokenBucketLimiter_Refill(t *testing.T) {
	limiter := NewTokenBucketLimiter(50, 1, 0)

	allowed, _ := limiter.Allow("client-a")
	require.True(t, allowed)
	allowed, _ = limiter.Allow("client-a")
	require.False(t, allowed)

	// 50 tokens/sec refills one token within ~20ms.
	time.Sleep(40 * time.Millisecond)
	allowed, _ = limiter.Allow("client-a")
	assert.True(t, allowed)
}

func TestRateLimit_Middleware(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, 0)
	cfg := DefaultRateLimitConfig()
	handler := RateLimit(limiter, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_SkipPaths(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, 0)
	cfg := DefaultRateLimitConfig()
	handler := RateLimit(limiter, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_KeyFuncUsesForwardedFor(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, 0)
	cfg := DefaultRateLimitConfig()
	handler := RateLimit(limiter, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	reqA := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	reqA.Header.Set("X-Forwarded-For", "10.0.0.1")
	reqB := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	reqB.Header.Set("X-Forwarded-For", "10.0.0.2")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqA)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, reqA)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, reqB)
	assert.Equal(t, http.StatusOK, rec.Code, "different client IP gets its own bucket")
}
