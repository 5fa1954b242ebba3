// Package httpapi implements the sidecar's control-plane HTTP surface:
// /health, /ready, /metrics, /events, and /sidecar/config/reload.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sidecar-io/sidecar/internal/httpapi/middleware"
)

// ProblemDetail represents an RFC 7807 Problem Details structure.
// See https://tools.ietf.org/html/rfc7807 for specification.
type ProblemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// NewProblemDetail creates a new RFC 7807 Problem Detail.
func NewProblemDetail(status int, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("https://sidecar.io/problems/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WriteErrorResponse writes an RFC 7807 compliant error response, filling in
// the instance and correlation ID from the request if the caller left them
// unset.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, problem *ProblemDetail) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if problem.CorrelationID == "" {
		problem.CorrelationID = correlationID
	}

	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		if logger != nil {
			logger.Error("failed to encode error response",
				slog.String("correlation_id", correlationID),
				slog.String("path", r.URL.Path),
				slog.String("method", r.Method),
				slog.String("encode_error", err.Error()),
				slog.Int("status", problem.Status),
			)
		}

		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// BadRequest creates a 400 Bad Request problem.
func BadRequest(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusBadRequest, "Bad Request", detail)
}

// InternalServerError creates a 500 Internal Server Error problem.
func InternalServerError(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusInternalServerError, "Internal Server Error", detail)
}

// RequestEntityTooLarge creates a 413 Request Entity Too Large problem.
func RequestEntityTooLarge(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusRequestEntityTooLarge, "Request Entity Too Large", detail)
}

// RequestTimeout creates a 408 Request Timeout problem.
func RequestTimeout(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusRequestTimeout, "Request Timeout", detail)
}
