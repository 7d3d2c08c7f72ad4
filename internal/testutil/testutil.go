// Package testutil provides helpers for integration tests that need a live
// Postgres or Redis instance.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mailsmith/mailsmith/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 730031

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops and recreates one migration's schema for tests.
// The name matches the migration file stem, e.g. "000001_users".
func ResetSchema(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".down.sql"))
	if err != nil {
		return fmt.Errorf("read down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration: %w", err)
	}

	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".up.sql"))
	if err != nil {
		return fmt.Errorf("read up migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply up migration: %w", err)
	}

	return nil
}

// ResetAllSchemas recreates every table in dependency order.
func ResetAllSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	names := []string{
		"000001_users",
		"000002_api_keys",
		"000003_otp_challenges",
		"000004_email_history",
		"000005_user_documents",
	}

	for _, name := range names {
		if err := ResetSchema(ctx, pool, name); err != nil {
			return fmt.Errorf("reset %s: %w", name, err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		ID:            UniqueID("user"),
		Email:         email,
		PasswordHash:  fmt.Sprintf("hash-%d", now.UnixNano()),
		Plan:          model.PlanFree,
		LastResetDate: now,
		CreatedAt:     now,
	}
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:          UniqueID("key"),
		UserID:      userID,
		KeyHash:     fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix:   "ab12cd",
		Permissions: []string{model.PermissionRead, model.PermissionWrite},
		Name:        "Test Key",
		CreatedAt:   now,
	}
}

// NewTestEmailRecord creates a drafted email record for tests.
func NewTestEmailRecord(t testing.TB, userID string) *model.EmailRecord {
	t.Helper()
	return &model.EmailRecord{
		ID:        UniqueID("email"),
		UserID:    userID,
		Recipient: "recipient@example.com",
		Subject:   "Test subject",
		Body:      "Test body",
		Status:    model.EmailStatusDrafted,
		CreatedAt: time.Now().UTC(),
	}
}

// UniqueEmail generates a unique email address for tests.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
