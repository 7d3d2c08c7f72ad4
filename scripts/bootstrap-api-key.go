// Command bootstrap-api-key provisions an operator account and API key
// directly against the database, bypassing the OTP registration flow.
// Intended for first-run setup and CI environments.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

type output struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Password    string   `json:"password,omitempty"`
	KeyID       string   `json:"key_id"`
	Key         string   `json:"key"`
	KeyPrefix   string   `json:"key_prefix"`
	Permissions []string `json:"permissions"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "ops@mailsmith.local", "User email")
		name        = flag.String("name", "bootstrap", "API key name")
		permsInput  = flag.String("permissions", "admin", "Comma-separated permissions (read,write,admin)")
		keyEnv      = flag.String("env", auth.EnvLive, "Key environment: live or test")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	permissions, err := parsePermissions(*permsInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	userID, password, err := ensureUser(ctx, repo, *email)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	generated, err := auth.GenerateAPIKey(*keyEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}

	apiKey := &model.APIKey{
		ID:          ulid.Make().String(),
		UserID:      userID,
		KeyHash:     generated.Hash,
		KeyPrefix:   generated.Prefix,
		Permissions: permissions,
		Name:        *name,
		CreatedAt:   time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		fmt.Fprintln(os.Stderr, "create api key:", err)
		os.Exit(1)
	}

	out := output{
		UserID:      userID,
		Email:       *email,
		Password:    password,
		KeyID:       apiKey.ID,
		Key:         generated.Plaintext,
		KeyPrefix:   apiKey.KeyPrefix,
		Permissions: permissions,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func parsePermissions(input string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return []string{model.PermissionAdmin}, nil
	}
	parts := strings.Split(input, ",")
	permissions := make([]string, 0, len(parts))
	for _, part := range parts {
		perm := strings.TrimSpace(part)
		if perm == "" {
			continue
		}
		if !isValidPermission(perm) {
			return nil, fmt.Errorf("invalid permission: %s", perm)
		}
		permissions = append(permissions, perm)
	}
	if len(permissions) == 0 {
		permissions = []string{model.PermissionAdmin}
	}
	return permissions, nil
}

func isValidPermission(perm string) bool {
	for _, allowed := range model.ValidPermissions {
		if perm == allowed {
			return true
		}
	}
	return false
}

// ensureUser returns the ID of the account owning the given email, creating
// it with a random password when it does not exist. The generated password is
// returned only on creation so it can be surfaced once.
func ensureUser(ctx context.Context, repo *repository.Repository, email string) (string, string, error) {
	existing, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		return existing.ID, "", nil
	}

	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate password: %w", err)
	}
	password := hex.EncodeToString(raw)

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:            ulid.Make().String(),
		Email:         email,
		PasswordHash:  hash,
		Plan:          model.PlanPremium,
		LastResetDate: now,
		CreatedAt:     now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return "", "", fmt.Errorf("create user: %w", err)
	}
	return user.ID, password, nil
}
