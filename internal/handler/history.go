package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

// Pagination bounds for email history listings.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryStore provides access to stored email records.
type HistoryStore interface {
	GetEmailRecordByID(ctx context.Context, userID, id string) (*model.EmailRecord, error)
	ListEmailRecords(ctx context.Context, userID string, limit, offset int) (*model.EmailHistoryPage, error)
}

// HistoryHandler serves the user's email history.
type HistoryHandler struct {
	logger *slog.Logger
	store  HistoryStore
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(logger *slog.Logger, store HistoryStore) *HistoryHandler {
	return &HistoryHandler{
		logger: logger,
		store:  store,
	}
}

// List handles GET /api/email-history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := parseIntParam(r, "limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	offset := parseIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	page, err := h.store.ListEmailRecords(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list email history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /api/email-history/{email_id}
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	emailID := chi.URLParam(r, "email_id")
	if emailID == "" {
		writeError(w, http.StatusBadRequest, "email id is required")
		return
	}

	record, err := h.store.GetEmailRecordByID(r.Context(), userID, emailID)
	if err != nil {
		if errors.Is(err, repository.ErrEmailNotFound) {
			writeError(w, http.StatusNotFound, "email not found")
			return
		}
		h.logger.Error("failed to get email record", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// parseIntParam reads an integer query parameter with a fallback.
func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
