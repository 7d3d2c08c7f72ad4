package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/service"
)

// DraftHandler handles draft generation, refinement, and dispatch endpoints.
type DraftHandler struct {
	logger         *slog.Logger
	drafts         *service.DraftService
	includeDetails bool // include upstream error details outside production
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(logger *slog.Logger, drafts *service.DraftService, includeDetails bool) *DraftHandler {
	return &DraftHandler{
		logger:         logger,
		drafts:         drafts,
		includeDetails: includeDetails,
	}
}

// Generate handles POST /api/generate
func (h *DraftHandler) Generate(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil || authCtx.User == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Business  string `json:"business"`
		Context   string `json:"context"`
		Recipient string `json:"recipient,omitempty"`
		Tone      string `json:"tone,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := h.drafts.Generate(r.Context(), authCtx.User, service.GenerateInput{
		Business:  req.Business,
		Context:   req.Context,
		Recipient: req.Recipient,
		Tone:      req.Tone,
	})
	if err != nil {
		h.writeDraftError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"email":   draft,
	})
}

// Improve handles POST /api/improve-email
func (h *DraftHandler) Improve(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil || authCtx.User == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Email        string `json:"email"`
		Instructions string `json:"instructions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	improved, err := h.drafts.Improve(r.Context(), authCtx.User, service.ImproveInput{
		Email:        req.Email,
		Instructions: req.Instructions,
	})
	if err != nil {
		h.writeDraftError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"email":   improved,
	})
}

// Send handles POST /api/send-email
func (h *DraftHandler) Send(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil || authCtx.User == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.drafts.Send(r.Context(), authCtx.User, service.SendInput{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		h.writeDraftError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "email sent",
		"email":   record,
	})
}

// writeDraftError maps draft service errors onto HTTP responses.
func (h *DraftHandler) writeDraftError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingBusiness),
		errors.Is(err, service.ErrMissingContext),
		errors.Is(err, service.ErrMissingEmail),
		errors.Is(err, service.ErrMissingInstructions),
		errors.Is(err, service.ErrMissingRecipient),
		errors.Is(err, service.ErrMissingSubject),
		errors.Is(err, service.ErrMissingBody):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		writeError(w, http.StatusForbidden, service.ErrQuotaExceeded.Error())
	case errors.Is(err, service.ErrUpstreamFailed):
		writeErrorDetails(w, http.StatusBadGateway,
			service.ErrUpstreamFailed.Error(), err.Error(), h.includeDetails)
	case errors.Is(err, service.ErrSendFailed):
		writeError(w, http.StatusBadGateway, service.ErrSendFailed.Error())
	default:
		h.logger.Error("draft operation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
