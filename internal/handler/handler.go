// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBodySize caps request bodies accepted by the decode helper (1MB).
const maxBodySize = 1 << 20

// ErrInvalidBody is returned when a request body cannot be decoded.
var ErrInvalidBody = errors.New("invalid request body")

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing useful left to do
		_ = err
	}
}

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeError writes a JSON error response with the uniform envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErrorDetails writes an error response carrying diagnostic details.
// Details are only included outside production.
func writeErrorDetails(w http.ResponseWriter, status int, message, details string, includeDetails bool) {
	resp := errorResponse{Error: message}
	if includeDetails {
		resp.Details = details
	}
	writeJSON(w, status, resp)
}

// decodeJSON decodes a size-limited JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return ErrInvalidBody
	}
	return nil
}
