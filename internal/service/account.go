package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

// Account service errors.
var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email has not been verified")
	ErrUserNotFound       = errors.New("user not found")
)

// emailRegex is a pragmatic format check; ownership is proven by OTP.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

// bestEffortTimeout bounds detached persistence updates such as last-login.
const bestEffortTimeout = 5 * time.Second

// AccountService handles registration, login, and account lifecycle.
type AccountService struct {
	users  UserStore
	otps   OTPStore
	tokens *auth.TokenManager
	logger *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(users UserStore, otps OTPStore, tokens *auth.TokenManager, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:  users,
		otps:   otps,
		tokens: tokens,
		logger: logger,
	}
}

// Register creates a user for a verified email and returns a session token.
// The email's OTP challenge must have been verified; registration consumes it.
func (s *AccountService) Register(ctx context.Context, email, password string) (string, *model.User, error) {
	if !emailRegex.MatchString(email) {
		return "", nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return "", nil, ErrPasswordTooShort
	}

	challenge, err := s.otps.GetOTPChallenge(ctx, email)
	if err != nil || !challenge.IsVerified() {
		return "", nil, ErrEmailNotVerified
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:            ulid.Make().String(),
		Email:         email,
		PasswordHash:  hash,
		Plan:          model.PlanFree,
		LastResetDate: now,
		CreatedAt:     now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return "", nil, ErrEmailTaken
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	// The challenge is consumed; its failure to delete is harmless.
	if err := s.otps.DeleteOTPChallenge(ctx, email); err != nil {
		s.logger.Warn("failed to delete consumed otp challenge",
			slog.String("error", err.Error()),
		)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue session token: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))

	return token, user, nil
}

// Login verifies credentials and returns a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue session token: %w", err)
	}

	s.touchLastLogin(user.ID)

	return token, user, nil
}

// Profile returns the caller's account.
func (s *AccountService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// DeleteAccount removes the user; owned email history and API keys cascade.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("account deleted", slog.String("user_id", userID))
	return nil
}

// touchLastLogin records a successful authentication on a detached context.
// Best-effort: a failure is logged and never surfaced to the request.
func (s *AccountService) touchLastLogin(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), bestEffortTimeout)
		defer cancel()

		if err := s.users.UpdateLastLogin(ctx, userID); err != nil {
			s.logger.Warn("failed to update last login",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}()
}
