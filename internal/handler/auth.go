package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/service"
)

// AuthHandler handles registration, login, and account endpoints.
type AuthHandler struct {
	logger   *slog.Logger
	accounts *service.AccountService
	otps     *service.OTPService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(logger *slog.Logger, accounts *service.AccountService, otps *service.OTPService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		accounts: accounts,
		otps:     otps,
	}
}

// SendOTP handles POST /api/auth/send-otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.otps.SendCode(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailAlreadyRegistered):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrOTPDeliveryFailed):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			h.logger.Error("send otp failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "verification code sent",
	})
}

// VerifyOTP handles POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.otps.VerifyCode(r.Context(), req.Email, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrOTPNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrOTPExpired),
			errors.Is(err, service.ErrOTPAttemptsExhausted),
			errors.Is(err, service.ErrOTPMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("verify otp failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrPasswordTooShort),
			errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailNotVerified):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			h.logger.Error("registration failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  user.ToProfile(time.Now().UTC()),
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user.ToProfile(time.Now().UTC()),
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.accounts.Profile(r.Context(), authCtx.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("profile lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, user.ToProfile(time.Now().UTC()))
}

// DeleteAccount handles DELETE /api/auth/delete-account
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	// Only the account owner with a full session may delete the account.
	if authCtx.Method != model.AuthMethodSession {
		writeError(w, http.StatusForbidden, "session authentication required")
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), authCtx.UserID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("account deletion failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "account deleted",
	})
}
