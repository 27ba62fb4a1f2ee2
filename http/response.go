package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sagarc03/stowgate"
)

const (
	textNotFound         = "Not found"
	textUnauthorized     = "Unauthorized"
	textOK               = "OK"
	textMethodNotAllowed = "Method not allowed"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// WriteText writes a plain text response.
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// HandleError writes the JSON error response matching err.
//
// Backend failures keep their message and code in the body. Authorization
// failures reported by the backend keep their status.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, stowgate.ErrInvalidInput):
		slog.DebugContext(ctx, "invalid request", "error", err)
		WriteError(w, http.StatusBadRequest, err.Error(), "invalid_input")
		return

	case errors.Is(err, stowgate.ErrNotFound):
		slog.DebugContext(ctx, "object not found", "error", err)
		WriteError(w, http.StatusNotFound, textNotFound, "NotFound")
		return

	case errors.Is(err, stowgate.ErrUnauthorized):
		slog.WarnContext(ctx, "backend rejected credentials", "error", err)
		WriteError(w, http.StatusUnauthorized, err.Error(), errorCode(err))
		return

	case errors.Is(err, stowgate.ErrForbidden):
		slog.WarnContext(ctx, "backend denied access", "error", err)
		WriteError(w, http.StatusForbidden, err.Error(), errorCode(err))
		return
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		slog.DebugContext(ctx, "upload too large", "limit", maxErr.Limit)
		WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum size", "too_large")
		return
	}

	slog.ErrorContext(ctx, "request error", "error", err)
	WriteError(w, http.StatusInternalServerError, err.Error(), errorCode(err))
}

func errorCode(err error) string {
	if be, ok := stowgate.AsBackendError(err); ok {
		return be.ErrorCode()
	}
	return "Unknown"
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
