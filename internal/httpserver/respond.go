package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"ecomOrderManagement/internal/auth"
	"ecomOrderManagement/internal/lifecycle"
	"ecomOrderManagement/repository"
)

// errorBody is the JSON envelope every failing endpoint returns.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError maps service and repository errors onto HTTP statuses with a
// stable machine-readable code. Internal errors keep their detail out of the
// response body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := classifyError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		// The request had no effect; an immediate retry is safe.
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, status, errorBody{
		Error:     code,
		Message:   msg,
		Status:    status,
		RequestID: chimw.GetReqID(r.Context()),
	})
}

func classifyError(err error) (string, int) {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidInput):
		return "invalid_argument", http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		return "unauthenticated", http.StatusUnauthorized
	case errors.Is(err, auth.ErrPermissionDenied):
		return "permission_denied", http.StatusForbidden
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return "not_found", http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "invalid_transition", http.StatusConflict
	case errors.Is(err, lifecycle.ErrInsufficientStock):
		return "insufficient_stock", http.StatusConflict
	case errors.Is(err, lifecycle.ErrOrderLocked):
		return "order_locked", http.StatusConflict
	case errors.Is(err, repository.ErrVariantInUse):
		return "variant_in_use", http.StatusConflict
	case errors.Is(err, lifecycle.ErrLockTimeout):
		return "lock_timeout", http.StatusServiceUnavailable
	default:
		return "internal", http.StatusInternalServerError
	}
}

// decodeBody parses a JSON request body into dst, rejecting unknown fields so
// client typos surface as errors instead of silently ignored settings.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidInputf("malformed request body: %v", err)
	}
	return nil
}

// invalidInputf builds a 400-classified error with a formatted detail.
func invalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", lifecycle.ErrInvalidInput, fmt.Sprintf(format, args...))
}
