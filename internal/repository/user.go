package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mailsmith/mailsmith/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailExists   = errors.New("email already registered")
	ErrQuotaExceeded = errors.New("generation quota exceeded")
)

const userColumns = `id, email, password_hash, plan, lifetime_used, daily_used, last_reset_date, last_login_at, created_at`

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, plan, lifetime_used, daily_used, last_reset_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Plan,
		user.LifetimeUsed,
		user.DailyUsed,
		user.LastResetDate,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by their email address.
// The lookup is case-sensitive, matching how emails are stored.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// UpdateLastLogin records a successful authentication.
// Callers treat this as best-effort; failures never abort the request.
func (r *Repository) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = $2 WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// ConsumeQuota records one successful generation for the user as a single
// conditional statement: the daily counter resets when the stored reset date
// is not today, the lifetime check and both increments happen atomically, so
// two concurrent requests at the free-plan boundary cannot both pass.
// Returns ErrQuotaExceeded when a free user is at or over the lifetime limit.
func (r *Repository) ConsumeQuota(ctx context.Context, id string, lifetimeLimit int) error {
	query := `
		UPDATE users
		SET lifetime_used = lifetime_used + 1,
		    daily_used = CASE
		        WHEN last_reset_date <> (now() AT TIME ZONE 'utc')::date THEN 1
		        ELSE daily_used + 1
		    END,
		    last_reset_date = (now() AT TIME ZONE 'utc')::date
		WHERE id = $1 AND (plan = $2 OR lifetime_used < $3)
	`

	result, err := r.pool.Exec(ctx, query, id, model.PlanPremium, lifetimeLimit)
	if err != nil {
		return fmt.Errorf("failed to consume quota: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either the user vanished or a free user hit the limit. Distinguish
		// so deleted accounts do not surface as quota errors.
		if _, lookupErr := r.GetUserByID(ctx, id); lookupErr != nil {
			return lookupErr
		}
		return ErrQuotaExceeded
	}

	return nil
}

// DeleteUser removes a user. Owned email history and API keys cascade via
// foreign key constraints.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// scanUser scans a single row into a User model.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Plan,
		&user.LifetimeUsed,
		&user.DailyUsed,
		&user.LastResetDate,
		&user.LastLoginAt,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &user, nil
}

// isUniqueViolation reports whether the error is a Postgres unique violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
