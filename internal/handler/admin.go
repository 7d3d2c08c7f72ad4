package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mailsmith/mailsmith/internal/metrics"
	"github.com/mailsmith/mailsmith/internal/model"
)

// StatsStore provides aggregate counts for the admin dashboard.
type StatsStore interface {
	Stats(ctx context.Context) (*model.AdminStats, error)
}

// AdminHandler serves operator-only endpoints.
type AdminHandler struct {
	logger *slog.Logger
	store  StatsStore
	snap   metrics.Snapshotter // optional
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(logger *slog.Logger, store StatsStore, snap metrics.Snapshotter) *AdminHandler {
	return &AdminHandler{
		logger: logger,
		store:  store,
		snap:   snap,
	}
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to collect admin stats", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := map[string]any{"stats": stats}
	if h.snap != nil {
		response["process_metrics"] = h.snap.Snapshot()
	}

	writeJSON(w, http.StatusOK, response)
}
