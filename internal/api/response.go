package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"usersvc/internal/auth"
	"usersvc/internal/constants"
	"usersvc/internal/services"
)

const (
	ErrCodeInvalidRequest     = constants.ErrCodeInvalidRequest
	ErrCodeInvalidCredentials = constants.ErrCodeInvalidCredentials
	ErrCodeAccountDisabled    = constants.ErrCodeAccountDisabled
	ErrCodeUnauthorized       = constants.ErrCodeUnauthorized
	ErrCodeNotFound           = constants.ErrCodeNotFound
	ErrCodeConflict           = constants.ErrCodeConflict
	ErrCodeInternal           = constants.ErrCodeInternal
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func conflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, "An internal error occurred")
}

// writeServiceError maps AuthService errors onto the client-facing envelope.
// Anything unrecognised is logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateIdentity):
		conflict(w, "Username or email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, services.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, ErrCodeAccountDisabled, "Account is disabled")
	case errors.Is(err, auth.ErrInvalidToken):
		unauthorized(w, "Invalid or expired token")
	case errors.Is(err, services.ErrUserNotFound):
		notFound(w, "User not found")
	default:
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		internalError(w)
	}
}
