package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mailsmith/mailsmith/internal/model"
)

func newOTPService(users *fakeUserStore, otps *fakeOTPStore, sender *fakeSender) *OTPService {
	return NewOTPService(users, otps, sender, discardLogger())
}

func TestSendCode_Success(t *testing.T) {
	t.Parallel()

	otps := newFakeOTPStore()
	sender := &fakeSender{}
	svc := newOTPService(newFakeUserStore(), otps, sender)

	if err := svc.SendCode(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}

	challenge, err := otps.GetOTPChallenge(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("Challenge not stored: %v", err)
	}
	if len(challenge.Code) != model.OTPCodeLength {
		t.Errorf("Code length = %d, want %d", len(challenge.Code), model.OTPCodeLength)
	}
	if challenge.IsVerified() {
		t.Error("Fresh challenge must not be verified")
	}

	if sender.sent() != 1 {
		t.Fatalf("Sent messages = %d, want 1", sender.sent())
	}
	if msg := sender.messages[0]; !strings.Contains(msg.TextBody, challenge.Code) {
		t.Errorf("Mail body should carry the code, got: %q", msg.TextBody)
	}
}

func TestSendCode_AlreadyRegistered(t *testing.T) {
	t.Parallel()

	user := newTestUser(model.PlanFree, 0)
	user.Email = "taken@example.com"
	svc := newOTPService(newFakeUserStore(user), newFakeOTPStore(), &fakeSender{})

	err := svc.SendCode(context.Background(), "taken@example.com")
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("SendCode error = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestSendCode_InvalidEmail(t *testing.T) {
	t.Parallel()

	svc := newOTPService(newFakeUserStore(), newFakeOTPStore(), &fakeSender{})

	if err := svc.SendCode(context.Background(), "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("SendCode error = %v, want ErrInvalidEmail", err)
	}
}

func TestSendCode_DeliveryFailure(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: errors.New("provider down")}
	svc := newOTPService(newFakeUserStore(), newFakeOTPStore(), sender)

	err := svc.SendCode(context.Background(), "new@example.com")
	if !errors.Is(err, ErrOTPDeliveryFailed) {
		t.Errorf("SendCode error = %v, want ErrOTPDeliveryFailed", err)
	}
}

func TestSendCode_OverwritesPendingChallenge(t *testing.T) {
	t.Parallel()

	otps := newFakeOTPStore()
	otps.challenges["new@example.com"] = &model.OTPChallenge{
		Email:     "new@example.com",
		Code:      "000000",
		Attempts:  4,
		ExpiresAt: time.Now().UTC().Add(time.Minute),
		CreatedAt: time.Now().UTC(),
	}
	svc := newOTPService(newFakeUserStore(), otps, &fakeSender{})

	if err := svc.SendCode(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}

	challenge, _ := otps.GetOTPChallenge(context.Background(), "new@example.com")
	if challenge.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0 after reissue", challenge.Attempts)
	}
	if challenge.Code == "000000" {
		t.Error("Reissue should replace the code")
	}
}

func TestVerifyCode_Success(t *testing.T) {
	t.Parallel()

	otps := newFakeOTPStore()
	sender := &fakeSender{}
	svc := newOTPService(newFakeUserStore(), otps, sender)

	if err := svc.SendCode(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	challenge, _ := otps.GetOTPChallenge(context.Background(), "new@example.com")

	if err := svc.VerifyCode(context.Background(), "new@example.com", challenge.Code); err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}

	stored, _ := otps.GetOTPChallenge(context.Background(), "new@example.com")
	if !stored.IsVerified() {
		t.Error("Challenge should be marked verified")
	}

	// Verification is idempotent.
	if err := svc.VerifyCode(context.Background(), "new@example.com", challenge.Code); err != nil {
		t.Errorf("Second VerifyCode = %v, want nil", err)
	}
}

func TestVerifyCode_NotFound(t *testing.T) {
	t.Parallel()

	svc := newOTPService(newFakeUserStore(), newFakeOTPStore(), &fakeSender{})

	err := svc.VerifyCode(context.Background(), "ghost@example.com", "123456")
	if !errors.Is(err, ErrOTPNotFound) {
		t.Errorf("VerifyCode error = %v, want ErrOTPNotFound", err)
	}
}

func TestVerifyCode_Expired(t *testing.T) {
	t.Parallel()

	otps := newFakeOTPStore()
	svc := newOTPService(newFakeUserStore(), otps, &fakeSender{})

	if err := svc.SendCode(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	challenge, _ := otps.GetOTPChallenge(context.Background(), "new@example.com")

	// Jump the clock past the challenge deadline.
	svc.now = func() time.Time { return challenge.ExpiresAt.Add(time.Second) }

	err := svc.VerifyCode(context.Background(), "new@example.com", challenge.Code)
	if !errors.Is(err, ErrOTPExpired) {
		t.Errorf("VerifyCode error = %v, want ErrOTPExpired", err)
	}
}

func TestVerifyCode_MismatchThenExhausted(t *testing.T) {
	t.Parallel()

	otps := newFakeOTPStore()
	svc := newOTPService(newFakeUserStore(), otps, &fakeSender{})

	if err := svc.SendCode(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}

	for i := 0; i < model.OTPMaxAttempts; i++ {
		err := svc.VerifyCode(context.Background(), "new@example.com", "wrong!")
		if !errors.Is(err, ErrOTPMismatch) {
			t.Fatalf("Attempt %d error = %v, want ErrOTPMismatch", i+1, err)
		}
	}

	// The correct code no longer helps once attempts are exhausted.
	challenge, _ := otps.GetOTPChallenge(context.Background(), "new@example.com")
	err := svc.VerifyCode(context.Background(), "new@example.com", challenge.Code)
	if !errors.Is(err, ErrOTPAttemptsExhausted) {
		t.Errorf("VerifyCode error = %v, want ErrOTPAttemptsExhausted", err)
	}
}
