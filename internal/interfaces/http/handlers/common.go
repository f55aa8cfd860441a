package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// parseLimit extracts a bounded limit from query parameters.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeAppError maps application errors to their HTTP status. Server-side
// codes are masked so internals never leak into responses.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal server error"
	}

	writeJSON(w, status, ErrorResponse{
		Code:    string(code),
		Message: msg,
	})
}
