package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVerifier maps token strings to user IDs.
type fakeVerifier struct {
	tokens map[string]string
	err    error
}

func (f *fakeVerifier) Verify(token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	userID, ok := f.tokens[token]
	if !ok {
		return "", auth.ErrTokenInvalid
	}
	return userID, nil
}

// fakeUserSource serves user records by ID.
type fakeUserSource struct {
	users map[string]*model.User
}

func (f *fakeUserSource) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserSource) UpdateLastLogin(_ context.Context, _ string) error { return nil }

// fakeKeySource serves API keys by prefix.
type fakeKeySource struct {
	keys map[string][]*model.APIKey
}

func (f *fakeKeySource) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	return f.keys[prefix], nil
}

func (f *fakeKeySource) UpdateAPIKeyLastUsed(_ context.Context, _ string) error { return nil }

func testUser(id string) *model.User {
	return &model.User{ID: id, Email: id + "@example.com", Plan: model.PlanFree}
}

func newAuthGate(tokens *fakeVerifier, users *fakeUserSource, keys *fakeKeySource) func(http.Handler) http.Handler {
	return Auth(AuthConfig{
		Logger: discardLogger(),
		Tokens: tokens,
		Users:  users,
		Keys:   keys,
	})
}

// echoAuth writes the resolved auth context back for assertions.
func echoAuth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.AuthFromContext(r.Context())
		if authCtx == nil {
			http.Error(w, "no auth context", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"user_id": authCtx.UserID,
			"method":  authCtx.Method,
		})
	})
}

func TestAuth_MissingCredential(t *testing.T) {
	t.Parallel()

	gate := newAuthGate(&fakeVerifier{}, &fakeUserSource{}, &fakeKeySource{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	gate(echoAuth()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", rec.Code)
	}
}

func TestAuth_SessionToken(t *testing.T) {
	t.Parallel()

	users := &fakeUserSource{users: map[string]*model.User{"user-1": testUser("user-1")}}
	tokens := &fakeVerifier{tokens: map[string]string{"good-token": "user-1"}}
	gate := newAuthGate(tokens, users, &fakeKeySource{})

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		gate(echoAuth()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var got map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &got)
		if got["user_id"] != "user-1" || got["method"] != model.AuthMethodSession {
			t.Errorf("Auth context = %v", got)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer forged")
		gate(echoAuth()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", rec.Code)
		}
	})

	t.Run("deleted account", func(t *testing.T) {
		t.Parallel()

		orphan := &fakeVerifier{tokens: map[string]string{"orphan-token": "gone-user"}}
		gate := newAuthGate(orphan, users, &fakeKeySource{})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer orphan-token")
		gate(echoAuth()).ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("Status = %d, want 403 for deleted account", rec.Code)
		}
	})
}

func TestAuth_APIKey(t *testing.T) {
	t.Parallel()

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	key := &model.APIKey{
		ID:          "key-1",
		UserID:      "user-1",
		KeyHash:     generated.Hash,
		KeyPrefix:   generated.Prefix,
		Permissions: []string{model.PermissionRead},
	}

	users := &fakeUserSource{users: map[string]*model.User{"user-1": testUser("user-1")}}
	keys := &fakeKeySource{keys: map[string][]*model.APIKey{generated.Prefix: {key}}}
	gate := newAuthGate(&fakeVerifier{}, users, keys)

	t.Run("bearer header", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/email-history", nil)
		req.Header.Set("Authorization", "Bearer "+generated.Plaintext)
		gate(echoAuth()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var got map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &got)
		if got["user_id"] != "user-1" || got["method"] != model.AuthMethodAPIKey {
			t.Errorf("Auth context = %v", got)
		}
	})

	t.Run("x-api-key header", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/email-history", nil)
		req.Header.Set("X-API-Key", generated.Plaintext)
		gate(echoAuth()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want 200", rec.Code)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()

		other, _ := auth.GenerateAPIKey(auth.EnvLive)
		// Same prefix namespace but a secret that hashes differently.
		forged := "mk_live_" + generated.Prefix + "_" + other.Plaintext[len(other.Plaintext)-32:]

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/email-history", nil)
		req.Header.Set("X-API-Key", forged)
		gate(echoAuth()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", rec.Code)
		}
	})

	t.Run("malformed key", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/email-history", nil)
		req.Header.Set("X-API-Key", "mk_live_nothex_short")
		gate(echoAuth()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", rec.Code)
		}
	})

	t.Run("deleted owner", func(t *testing.T) {
		t.Parallel()

		gate := newAuthGate(&fakeVerifier{}, &fakeUserSource{users: map[string]*model.User{}}, keys)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/email-history", nil)
		req.Header.Set("X-API-Key", generated.Plaintext)
		gate(echoAuth()).ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("Status = %d, want 403 for deleted owner", rec.Code)
		}
	})
}
