// Package model defines domain entities for the application.
package model

import "time"

// OTP lifecycle parameters.
const (
	OTPCodeLength  = 6
	OTPTTL         = 15 * time.Minute
	OTPMaxAttempts = 5
)

// OTPState represents the computed state of an OTP challenge.
type OTPState string

const (
	OTPStatePending           OTPState = "pending"
	OTPStateVerified          OTPState = "verified"
	OTPStateExpired           OTPState = "expired"
	OTPStateAttemptsExhausted OTPState = "attempts_exhausted"
)

// OTPChallenge represents a one-time-passcode challenge for an email address.
// At most one challenge is active per email; issuing a new code overwrites
// the previous challenge and resets the attempt counter.
type OTPChallenge struct {
	Email      string     `json:"email"`
	Code       string     `json:"-"` // Never serialize
	ExpiresAt  time.Time  `json:"expires_at"`
	Attempts   int        `json:"attempts"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// State computes the current state of the challenge.
// Verification wins over expiry: a challenge verified before its deadline
// stays verified.
func (c *OTPChallenge) State(now time.Time) OTPState {
	if c.VerifiedAt != nil {
		return OTPStateVerified
	}
	if c.Attempts >= OTPMaxAttempts {
		return OTPStateAttemptsExhausted
	}
	if now.After(c.ExpiresAt) {
		return OTPStateExpired
	}
	return OTPStatePending
}

// IsVerified returns true if the challenge has been verified.
func (c *OTPChallenge) IsVerified() bool {
	return c.VerifiedAt != nil
}
