package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

// DocumentStore provides access to user-owned JSON documents.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, userID string, kind model.DocumentKind) (*model.Document, error)
}

// DocumentHandler serves the user's preferences and tone profile documents.
// Both endpoints share the same storage shape; they differ only in kind.
type DocumentHandler struct {
	logger *slog.Logger
	store  DocumentStore
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(logger *slog.Logger, store DocumentStore) *DocumentHandler {
	return &DocumentHandler{
		logger: logger,
		store:  store,
	}
}

// GetPreferences handles GET /api/preferences
func (h *DocumentHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, model.DocumentPreferences)
}

// SavePreferences handles POST /api/preferences
func (h *DocumentHandler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, model.DocumentPreferences)
}

// GetToneProfile handles GET /api/tone-profile
func (h *DocumentHandler) GetToneProfile(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, model.DocumentToneProfile)
}

// SaveToneProfile handles POST /api/tone-profile
func (h *DocumentHandler) SaveToneProfile(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, model.DocumentToneProfile)
}

// get returns the stored document, or an empty one if none exists yet.
func (h *DocumentHandler) get(w http.ResponseWriter, r *http.Request, kind model.DocumentKind) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	doc, err := h.store.GetDocument(r.Context(), userID, kind)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			writeJSON(w, http.StatusOK, model.EmptyDocument(userID, kind))
			return
		}
		h.logger.Error("failed to get document",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// save validates and stores the document payload.
func (h *DocumentHandler) save(w http.ResponseWriter, r *http.Request, kind model.DocumentKind) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload json.RawMessage
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := &model.Document{
		UserID:        userID,
		Kind:          kind,
		SchemaVersion: model.DocumentSchemaVersion,
		Data:          payload,
	}

	if err := doc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpsertDocument(r.Context(), doc); err != nil {
		h.logger.Error("failed to save document",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "saved",
	})
}
