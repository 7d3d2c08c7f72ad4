package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/mailer"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

// OTP service errors.
var (
	ErrOTPNotFound            = errors.New("no passcode requested for this email")
	ErrOTPExpired             = errors.New("passcode has expired")
	ErrOTPAttemptsExhausted   = errors.New("too many failed attempts, request a new passcode")
	ErrOTPMismatch            = errors.New("incorrect passcode")
	ErrOTPDeliveryFailed      = errors.New("failed to deliver passcode")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
)

// OTPService issues and verifies one-time passcodes for email ownership.
type OTPService struct {
	users  UserStore
	otps   OTPStore
	sender mailer.Sender
	logger *slog.Logger
	now    func() time.Time
}

// NewOTPService creates a new OTPService.
func NewOTPService(users UserStore, otps OTPStore, sender mailer.Sender, logger *slog.Logger) *OTPService {
	return &OTPService{
		users:  users,
		otps:   otps,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// SendCode issues a passcode to an email not yet registered.
// A new code overwrites any pending challenge and resets its attempts.
func (s *OTPService) SendCode(ctx context.Context, email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return ErrEmailAlreadyRegistered
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("lookup user: %w", err)
	}

	code, err := auth.GenerateOTPCode(model.OTPCodeLength)
	if err != nil {
		return fmt.Errorf("generate passcode: %w", err)
	}

	now := s.now().UTC()
	challenge := &model.OTPChallenge{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(model.OTPTTL),
		CreatedAt: now,
	}

	if err := s.otps.UpsertOTPChallenge(ctx, challenge); err != nil {
		return fmt.Errorf("store otp challenge: %w", err)
	}

	msg := mailer.Message{
		To:       email,
		Subject:  "Your Mailsmith verification code",
		TextBody: fmt.Sprintf("Your verification code is %s. It expires in 15 minutes.", code),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error("otp delivery failed", slog.String("error", err.Error()))
		return ErrOTPDeliveryFailed
	}

	s.logger.Info("otp issued", slog.String("email_hash", auth.QuickHash(email)))

	return nil
}

// VerifyCode checks a passcode against the pending challenge.
// A mismatch increments the attempt counter; five failures exhaust the
// challenge until a new code is requested.
func (s *OTPService) VerifyCode(ctx context.Context, email, code string) error {
	challenge, err := s.otps.GetOTPChallenge(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return ErrOTPNotFound
		}
		return fmt.Errorf("lookup otp challenge: %w", err)
	}

	switch challenge.State(s.now()) {
	case model.OTPStateExpired:
		return ErrOTPExpired
	case model.OTPStateAttemptsExhausted:
		return ErrOTPAttemptsExhausted
	case model.OTPStateVerified:
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(challenge.Code)) != 1 {
		if err := s.otps.IncrementOTPAttempts(ctx, email); err != nil {
			s.logger.Warn("failed to record otp attempt", slog.String("error", err.Error()))
		}
		return ErrOTPMismatch
	}

	if err := s.otps.MarkOTPVerified(ctx, email); err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}

	return nil
}
