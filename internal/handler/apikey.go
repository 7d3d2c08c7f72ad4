package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

// KeyStore provides access to stored API keys.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// APIKeyHandler handles API key management endpoints.
// Key management requires a full session; keys cannot mint or revoke keys.
type APIKeyHandler struct {
	logger *slog.Logger
	store  KeyStore
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(logger *slog.Logger, store KeyStore) *APIKeyHandler {
	return &APIKeyHandler{
		logger: logger,
		store:  store,
	}
}

// Create handles POST /api/api-keys
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if authCtx.Method != model.AuthMethodSession {
		writeError(w, http.StatusForbidden, "session authentication required")
		return
	}

	var req model.APIKeyCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, perm := range req.Permissions {
		if !slices.Contains(model.ValidPermissions, perm) {
			writeError(w, http.StatusBadRequest,
				"invalid permission: "+perm+", valid permissions: read, write, admin")
			return
		}
	}

	// Default to read permission if none provided
	if len(req.Permissions) == 0 {
		req.Permissions = []string{model.PermissionRead}
	}

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	apiKey := &model.APIKey{
		ID:          ulid.Make().String(),
		UserID:      authCtx.UserID,
		KeyHash:     generated.Hash,
		KeyPrefix:   generated.Prefix,
		Permissions: req.Permissions,
		Name:        req.Name,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.store.CreateAPIKey(ctx, apiKey); err != nil {
		h.logger.Error("failed to create API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create API key")
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", apiKey.ID),
		slog.String("key_prefix", apiKey.KeyPrefix),
		slog.String("user_id", apiKey.UserID),
	)

	// Plaintext key is shown once only
	writeJSON(w, http.StatusCreated, model.APIKeyCreateResponse{
		ID:          apiKey.ID,
		Key:         generated.Plaintext,
		Name:        apiKey.Name,
		KeyPrefix:   apiKey.KeyPrefix,
		Permissions: apiKey.Permissions,
		CreatedAt:   apiKey.CreatedAt,
	})
}

// List handles GET /api/api-keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if authCtx.Method != model.AuthMethodSession {
		writeError(w, http.StatusForbidden, "session authentication required")
		return
	}

	keys, err := h.store.ListAPIKeysByUserID(ctx, authCtx.UserID)
	if err != nil {
		h.logger.Error("failed to list API keys", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list API keys")
		return
	}

	responses := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		responses = append(responses, key.ToResponse())
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": responses})
}

// Revoke handles DELETE /api/api-keys/{key_id}
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if authCtx.Method != model.AuthMethodSession {
		writeError(w, http.StatusForbidden, "session authentication required")
		return
	}

	keyID := chi.URLParam(r, "key_id")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, "key id is required")
		return
	}

	key, err := h.store.GetAPIKeyByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, "API key not found or already revoked")
			return
		}
		h.logger.Error("failed to get API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to revoke API key")
		return
	}

	// 404 for other users' keys and already-revoked keys prevents enumeration
	if key.UserID != authCtx.UserID || !key.IsActive() {
		writeError(w, http.StatusNotFound, "API key not found or already revoked")
		return
	}

	// A cached auth context for this key can outlive the revocation by up
	// to the cache TTL. The cache entry is keyed on the plaintext
	// credential, which is not available here, so it expires on its own.
	if err := h.store.RevokeAPIKey(ctx, keyID); err != nil {
		h.logger.Error("failed to revoke API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to revoke API key")
		return
	}

	h.logger.Info("API key revoked",
		slog.String("key_id", keyID),
		slog.String("user_id", authCtx.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}
