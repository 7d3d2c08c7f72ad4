package middleware

import (
	"net/http"
	"strings"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
)

// RequireAdminEmail returns middleware that restricts an endpoint to the
// configured operator allowlist. Only session-authenticated requests
// qualify; API keys never grant operator access regardless of permissions.
// Must be applied after Auth middleware.
func RequireAdminEmail(allowed []string) func(http.Handler) http.Handler {
	allowedMap := make(map[string]bool, len(allowed))
	for _, email := range allowed {
		allowedMap[strings.ToLower(email)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writePermissionError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if authCtx.Method != model.AuthMethodSession || authCtx.User == nil ||
				!allowedMap[strings.ToLower(authCtx.User.Email)] {
				writePermissionError(w, http.StatusForbidden, "operator access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
