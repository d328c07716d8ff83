// Package httputil provides shared HTTP plumbing: the JSON error shape,
// bounded request decoding, and log sanitization.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/agnostech/event-gateway/internal/pkg/logger"
)

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteError writes the JSON error body and logs the failure with the
// request id when one is present. Details are sanitized before logging
// and never sent to the client on 5xx responses.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message, details string) {
	sanitized := SanitizeString(details)

	args := []any{
		"status", status,
		"message", message,
		"path", r.URL.Path,
		"method", r.Method,
	}
	if sanitized != "" {
		args = append(args, "details", sanitized)
	}
	if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
		args = append(args, "request_id", reqID)
	}
	logger.Error("request failed", args...)

	resp := ErrorResponse{Error: message}
	if status < http.StatusInternalServerError {
		resp.Details = sanitized
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, message, "")
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusUnauthorized, "unauthorized", "")
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "not found"
	}
	WriteError(w, r, http.StatusNotFound, message, "")
}

// InternalError writes a 500 response with a fixed body; the underlying
// error only appears in the log.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	WriteError(w, r, http.StatusInternalServerError, "internal server error", details)
}

// InvalidJSON writes a 400 response for a body that failed to parse.
func InvalidJSON(w http.ResponseWriter, r *http.Request, err error) {
	details := ""
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			details = fmt.Sprintf("syntax error at position %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			details = fmt.Sprintf("field %q has wrong type, expected %s", typeErr.Field, typeErr.Type)
		case errors.Is(err, io.EOF):
			details = "request body is empty"
		case strings.Contains(err.Error(), "unexpected end of JSON"):
			details = "incomplete JSON body"
		default:
			details = err.Error()
		}
	}
	WriteError(w, r, http.StatusBadRequest, "invalid JSON in request body", details)
}

// RequestTooLarge writes a 413 response.
func RequestTooLarge(w http.ResponseWriter, r *http.Request, maxSize int64) {
	details := ""
	if maxSize > 0 {
		details = fmt.Sprintf("maximum allowed size: %d bytes", maxSize)
	}
	WriteError(w, r, http.StatusRequestEntityTooLarge, "request body too large", details)
}
