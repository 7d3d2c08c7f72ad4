package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/metrics"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

// bestEffortTimeout bounds the detached last-login and last-used updates.
const bestEffortTimeout = 5 * time.Second

// TokenVerifier validates session tokens. *auth.TokenManager satisfies it.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserSource resolves authenticated user records.
// *repository.Repository satisfies it.
type UserSource interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// KeySource resolves API keys during authentication.
// *repository.Repository satisfies it.
type KeySource interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches resolved API-key identities. *cache.Cache satisfies it.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, authCtx *model.AuthContext) error
}

// AuthConfig holds dependencies for the auth gate.
type AuthConfig struct {
	Logger  *slog.Logger
	Tokens  TokenVerifier
	Users   UserSource
	Keys    KeySource
	Cache   AuthCache // optional
	Metrics metrics.Recorder
}

// Auth returns the middleware gating every protected endpoint.
// It accepts either a session token or an API key as the bearer credential,
// resolves it to a user record, and injects the identity into the request
// context. A valid token for a since-deleted account is rejected with 403.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractBearer(r)
			if credential == "" {
				cfg.logFailure(r, "missing_credential")
				recorder.IncAuthFailure("missing_credential")
				writeAuthError(w, http.StatusUnauthorized, "missing credentials")
				return
			}

			var authCtx *model.AuthContext
			var err error

			if auth.LooksLikeAPIKey(credential) {
				authCtx, err = cfg.resolveAPIKey(r.Context(), credential, recorder)
			} else {
				authCtx, err = cfg.resolveSession(r.Context(), credential)
			}

			if err != nil {
				reason := failureReason(err)
				cfg.logFailure(r, reason)
				recorder.IncAuthFailure(reason)

				if errors.Is(err, errAccountGone) {
					writeAuthError(w, http.StatusForbidden, "account not found")
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired credentials")
				return
			}

			recorder.IncAuthSuccess(authCtx.Method)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Sentinel errors internal to the gate.
var (
	errAccountGone   = errors.New("account gone")
	errBadCredential = errors.New("bad credential")
)

// resolveSession verifies a session token and loads the user record.
func (cfg AuthConfig) resolveSession(ctx context.Context, token string) (*model.AuthContext, error) {
	userID, err := cfg.Tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := cfg.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errAccountGone
		}
		return nil, err
	}

	// Best-effort; never blocks the request.
	go func() {
		detached, cancel := context.WithTimeout(context.Background(), bestEffortTimeout)
		defer cancel()
		if err := cfg.Users.UpdateLastLogin(detached, user.ID); err != nil {
			cfg.Logger.Warn("failed to update last login",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	return &model.AuthContext{
		UserID: user.ID,
		Method: model.AuthMethodSession,
		User:   user,
	}, nil
}

// resolveAPIKey verifies an API key by prefix lookup and hash comparison,
// consulting the cache first, and loads the owning user record.
func (cfg AuthConfig) resolveAPIKey(ctx context.Context, credential string, recorder metrics.Recorder) (*model.AuthContext, error) {
	parsed, err := auth.ParseAPIKey(credential)
	if err != nil {
		return nil, errBadCredential
	}

	cacheKey := auth.QuickHash(credential)

	if cfg.Cache != nil {
		if cached, _ := cfg.Cache.GetAuthContext(ctx, cacheKey); cached != nil {
			recorder.IncAuthCacheHit()
			return cfg.attachUser(ctx, cached)
		}
		recorder.IncAuthCacheMiss()
	}

	keys, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, err
	}

	// Verify against each candidate key (handles prefix collisions)
	var matched *model.APIKey
	for _, k := range keys {
		ok, err := auth.VerifyPassword(credential, k.KeyHash)
		if err != nil {
			continue
		}
		if ok {
			matched = k
			break
		}
	}

	if matched == nil {
		return nil, errBadCredential
	}

	authCtx := &model.AuthContext{
		UserID:      matched.UserID,
		Method:      model.AuthMethodAPIKey,
		KeyID:       matched.ID,
		KeyPrefix:   matched.KeyPrefix,
		Permissions: matched.Permissions,
	}

	if cfg.Cache != nil {
		_ = cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx)
	}

	// Best-effort; never blocks the request.
	go func() {
		detached, cancel := context.WithTimeout(context.Background(), bestEffortTimeout)
		defer cancel()
		if err := cfg.Keys.UpdateAPIKeyLastUsed(detached, matched.ID); err != nil {
			cfg.Logger.Warn("failed to update API key last used",
				slog.String("key_id", matched.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	return cfg.attachUser(ctx, authCtx)
}

// attachUser loads the owning user record onto an API-key identity.
// Rejects keys whose owner has since been deleted.
func (cfg AuthConfig) attachUser(ctx context.Context, authCtx *model.AuthContext) (*model.AuthContext, error) {
	user, err := cfg.Users.GetUserByID(ctx, authCtx.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errAccountGone
		}
		return nil, err
	}

	authCtx.User = user
	return authCtx, nil
}

// logFailure records an authentication failure with request coordinates.
func (cfg AuthConfig) logFailure(r *http.Request, reason string) {
	cfg.Logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// failureReason maps gate errors to log/metric labels.
func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired_token"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "malformed_token"
	case errors.Is(err, auth.ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, errAccountGone):
		return "account_gone"
	case errors.Is(err, errBadCredential):
		return "invalid_key"
	default:
		return "store_error"
	}
}

// extractBearer extracts the bearer credential from the request.
// Supports both "Authorization: Bearer <credential>" and "X-API-Key" headers.
func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	return r.Header.Get("X-API-Key")
}

// writeAuthError writes a JSON auth error response.
// Uses generic messages to prevent credential enumeration.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
