package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mailsmith/mailsmith/internal/model"
)

// Common errors for OTP repository operations.
var (
	ErrOTPNotFound = errors.New("otp challenge not found")
)

// UpsertOTPChallenge creates or replaces the challenge for an email.
// A reissued code overwrites the prior challenge and resets attempts.
func (r *Repository) UpsertOTPChallenge(ctx context.Context, challenge *model.OTPChallenge) error {
	query := `
		INSERT INTO otp_challenges (email, code, expires_at, attempts, verified_at, created_at)
		VALUES ($1, $2, $3, 0, NULL, $4)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code,
		    expires_at = EXCLUDED.expires_at,
		    attempts = 0,
		    verified_at = NULL,
		    created_at = EXCLUDED.created_at
	`

	_, err := r.pool.Exec(ctx, query,
		challenge.Email,
		challenge.Code,
		challenge.ExpiresAt,
		challenge.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert otp challenge: %w", err)
	}

	return nil
}

// GetOTPChallenge retrieves the challenge for an email.
func (r *Repository) GetOTPChallenge(ctx context.Context, email string) (*model.OTPChallenge, error) {
	query := `
		SELECT email, code, expires_at, attempts, verified_at, created_at
		FROM otp_challenges
		WHERE email = $1
	`

	var c model.OTPChallenge
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&c.Email,
		&c.Code,
		&c.ExpiresAt,
		&c.Attempts,
		&c.VerifiedAt,
		&c.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("failed to get otp challenge: %w", err)
	}

	return &c, nil
}

// IncrementOTPAttempts records a failed verification attempt.
func (r *Repository) IncrementOTPAttempts(ctx context.Context, email string) error {
	query := `UPDATE otp_challenges SET attempts = attempts + 1 WHERE email = $1`

	_, err := r.pool.Exec(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to increment otp attempts: %w", err)
	}

	return nil
}

// MarkOTPVerified marks the challenge as verified.
func (r *Repository) MarkOTPVerified(ctx context.Context, email string) error {
	query := `UPDATE otp_challenges SET verified_at = $2 WHERE email = $1`

	result, err := r.pool.Exec(ctx, query, email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark otp verified: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrOTPNotFound
	}

	return nil
}

// DeleteOTPChallenge removes the challenge for an email.
// Called when registration consumes a verified challenge.
func (r *Repository) DeleteOTPChallenge(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM otp_challenges WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("failed to delete otp challenge: %w", err)
	}

	return nil
}
