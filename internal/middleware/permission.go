package middleware

import (
	"fmt"
	"net/http"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
)

// RequirePermission returns middleware that enforces permission requirements.
// Must be applied after Auth middleware. Session tokens carry every
// permission; API keys carry only what they were created with, and the
// admin permission implies the rest.
// If multiple permissions are provided, having ANY of them is sufficient.
func RequirePermission(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writePermissionError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, req := range required {
				if authCtx.HasPermission(req) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writePermissionError(w, http.StatusForbidden,
				fmt.Sprintf("insufficient permissions, required: %s", required[0]))
		})
	}
}

// RequireSession returns middleware that restricts an endpoint to
// session-authenticated callers. API keys are rejected regardless of
// permissions; account and key management require the full login.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writePermissionError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if authCtx.Method != model.AuthMethodSession {
				writePermissionError(w, http.StatusForbidden, "session authentication required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRead is a convenience middleware for the read permission.
func RequireRead() func(http.Handler) http.Handler {
	return RequirePermission(model.PermissionRead)
}

// RequireWrite is a convenience middleware for the write permission.
func RequireWrite() func(http.Handler) http.Handler {
	return RequirePermission(model.PermissionWrite)
}

// writePermissionError writes a permission-related error response.
func writePermissionError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":"%s"}`, message)))
}
