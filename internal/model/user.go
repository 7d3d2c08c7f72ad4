// Package model defines domain entities for the application.
package model

import "time"

// Plan constants for user subscription tiers.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// User represents an account holder.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"` // Never serialize
	Plan          string     `json:"plan"`
	LifetimeUsed  int        `json:"lifetime_emails_used"`
	DailyUsed     int        `json:"daily_emails_used"`
	LastResetDate time.Time  `json:"-"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsPremium returns true if the user is on the premium plan.
func (u *User) IsPremium() bool {
	return u.Plan == PlanPremium
}

// NeedsDailyReset reports whether the daily counter is stale relative to now.
// Counters reset on calendar-day boundaries, compared in UTC.
func (u *User) NeedsDailyReset(now time.Time) bool {
	ry, rm, rd := u.LastResetDate.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return ry != ny || rm != nm || rd != nd
}

// CanGenerate reports whether the user may perform one more metered
// generation. Premium users are unmetered.
func (u *User) CanGenerate(lifetimeLimit int) bool {
	if u.IsPremium() {
		return true
	}
	return u.LifetimeUsed < lifetimeLimit
}

// EffectiveDailyUsed returns the daily counter as it stands right now,
// accounting for a pending calendar-day reset.
func (u *User) EffectiveDailyUsed(now time.Time) int {
	if u.NeedsDailyReset(now) {
		return 0
	}
	return u.DailyUsed
}

// Profile is the user representation returned to the account owner.
type Profile struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Plan         string     `json:"plan"`
	LifetimeUsed int        `json:"lifetime_emails_used"`
	DailyUsed    int        `json:"daily_emails_used"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToProfile converts a User to its owner-facing representation.
func (u *User) ToProfile(now time.Time) Profile {
	return Profile{
		ID:           u.ID,
		Email:        u.Email,
		Plan:         u.Plan,
		LifetimeUsed: u.LifetimeUsed,
		DailyUsed:    u.EffectiveDailyUsed(now),
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
	}
}
