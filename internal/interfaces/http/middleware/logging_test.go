package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

func okEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestRequestLogging_PassesThrough(t *testing.T) {
	handler := RequestLogging(logging.NewNopLogger(), DefaultLoggingConfig())(okEcho())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/search?q=x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequestLogging_SkipPaths(t *testing.T) {
	cfg := DefaultLoggingConfig()
	handler := RequestLogging(logging.NewNopLogger(), cfg)(okEcho())

	// Skipped paths still reach the wrapped handler untouched.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogging_PreservesStatusCode(t *testing.T) {
	handler := RequestLogging(logging.NewNopLogger(), DefaultLoggingConfig())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
