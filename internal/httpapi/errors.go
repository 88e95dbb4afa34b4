package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"forecastd/internal/prediction"
	"forecastd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// temporary is implemented by errors a client may retry shortly.
type temporary interface {
	Temporary() bool
}

// retryAfterSeconds is advertised on temporary failures.
const retryAfterSeconds = "1"

// statusFor maps err to an HTTP status. The outermost typed error wins.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isTemporary(err error) bool {
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

// writeJSONError writes a consistent JSON error payload for failures detected
// by the HTTP layer itself.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeErrorBody(w, types.ErrorResponse{Error: msg, Code: status, Kind: "invalid_request"})
}

// writeError maps a service error to status, kind and retry hints.
func writeError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	body := types.ErrorResponse{
		Error:     err.Error(),
		Code:      status,
		Kind:      prediction.Kind(err),
		Retryable: isTemporary(err),
	}
	if body.Retryable {
		w.Header().Set("Retry-After", retryAfterSeconds)
		IncrementBackpressure(body.Kind)
	}
	writeErrorBody(w, body)
	return status
}

func writeErrorBody(w http.ResponseWriter, body types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
