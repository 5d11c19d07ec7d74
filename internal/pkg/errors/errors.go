package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Sentinel errors for the access and mail engines. Denial outcomes from the
// permission resolver are plain false returns, not errors; these cover the
// cases a caller must branch on.
var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTransientStore       = errors.New("transient store failure")
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeTransient    = "TRANSIENT_FAILURE"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}
