package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mailsmith/mailsmith/internal/auth"
	"github.com/mailsmith/mailsmith/internal/llm"
	"github.com/mailsmith/mailsmith/internal/mailer"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
	"github.com/mailsmith/mailsmith/internal/service"
)

// fakeDraftUserStore is a single-user service.UserStore.
type fakeDraftUserStore struct {
	mu   sync.Mutex
	user *model.User
}

func (s *fakeDraftUserStore) CreateUser(_ context.Context, _ *model.User) error { return nil }

func (s *fakeDraftUserStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != id {
		return nil, repository.ErrUserNotFound
	}
	copy := *s.user
	return &copy, nil
}

func (s *fakeDraftUserStore) GetUserByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, repository.ErrUserNotFound
}

func (s *fakeDraftUserStore) UpdateLastLogin(_ context.Context, _ string) error { return nil }

func (s *fakeDraftUserStore) ConsumeQuota(_ context.Context, id string, lifetimeLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != id {
		return repository.ErrUserNotFound
	}
	if !s.user.IsPremium() && s.user.LifetimeUsed >= lifetimeLimit {
		return repository.ErrQuotaExceeded
	}
	s.user.LifetimeUsed++
	s.user.DailyUsed++
	return nil
}

func (s *fakeDraftUserStore) DeleteUser(_ context.Context, _ string) error { return nil }

// fakeDraftHistory is an in-memory service.EmailStore.
type fakeDraftHistory struct {
	mu      sync.Mutex
	records []*model.EmailRecord
}

func (s *fakeDraftHistory) CreateEmailRecord(_ context.Context, record *model.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *fakeDraftHistory) MarkEmailSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return nil
		}
	}
	return repository.ErrEmailNotFound
}

func (s *fakeDraftHistory) GetEmailRecordByID(_ context.Context, _, _ string) (*model.EmailRecord, error) {
	return nil, repository.ErrEmailNotFound
}

func (s *fakeDraftHistory) ListEmailRecords(_ context.Context, _ string, _, _ int) (*model.EmailHistoryPage, error) {
	return &model.EmailHistoryPage{}, nil
}

// fakeCompleter is a canned llm.Client.
type fakeCompleter struct {
	text string
	err  error
}

func (c *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	return c.text, c.err
}

func newDraftHandler(t *testing.T, completion string) (*DraftHandler, *fakeDraftUserStore) {
	t.Helper()

	users := &fakeDraftUserStore{user: &model.User{
		ID:            "user-1",
		Email:         "alice@example.com",
		Plan:          model.PlanFree,
		LastResetDate: time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}}
	drafts := service.NewDraftService(
		users,
		&fakeDraftHistory{},
		nil,
		&fakeCompleter{text: completion},
		mailer.NewNoop(),
		10,
		nil,
		discardLogger(),
	)
	return NewDraftHandler(discardLogger(), drafts, false), users
}

func draftRequest(method, target, body string, user *model.User) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	authCtx := &model.AuthContext{
		UserID: user.ID,
		Method: model.AuthMethodSession,
		User:   user,
	}
	return req.WithContext(auth.ContextWithAuth(req.Context(), authCtx))
}

func TestGenerate_ResponseShape(t *testing.T) {
	t.Parallel()

	const draft = "Subject: Thank you\n\nDear customer, thank you for your order."
	h, users := newDraftHandler(t, draft)

	req := draftRequest(http.MethodPost, "/api/generate",
		`{"business":"bakery","context":"thank a customer"}`, users.user)
	rec := httptest.NewRecorder()

	h.Generate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if success, ok := resp["success"].(bool); !ok || !success {
		t.Errorf(`response["success"] = %v, want true`, resp["success"])
	}
	if got := resp["email"]; got != draft {
		t.Errorf(`response["email"] = %q, want %q`, got, draft)
	}

	if used := users.user.LifetimeUsed; used != 1 {
		t.Errorf("LifetimeUsed = %d, want 1", used)
	}
}

func TestImprove_ResponseShape(t *testing.T) {
	t.Parallel()

	const improved = "Subject: Follow-up\n\nRevised body."
	h, users := newDraftHandler(t, improved)

	req := draftRequest(http.MethodPost, "/api/improve-email",
		`{"email":"Subject: Follow-up\n\nDraft body.","instructions":"make it warmer"}`, users.user)
	rec := httptest.NewRecorder()

	h.Improve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if success, ok := resp["success"].(bool); !ok || !success {
		t.Errorf(`response["success"] = %v, want true`, resp["success"])
	}
	if got := resp["email"]; got != improved {
		t.Errorf(`response["email"] = %q, want %q`, got, improved)
	}

	// Refinement is not metered.
	if used := users.user.LifetimeUsed; used != 0 {
		t.Errorf("LifetimeUsed = %d, want 0", used)
	}
}

func TestSend_ResponseShape(t *testing.T) {
	t.Parallel()

	h, users := newDraftHandler(t, "")

	req := draftRequest(http.MethodPost, "/api/send-email",
		`{"to":"client@example.com","subject":"Hello","body":"Hi there"}`, users.user)
	rec := httptest.NewRecorder()

	h.Send(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if success, ok := resp["success"].(bool); !ok || !success {
		t.Errorf(`response["success"] = %v, want true`, resp["success"])
	}
	if got := resp["message"]; got != "email sent" {
		t.Errorf(`response["message"] = %q, want "email sent"`, got)
	}
	record, ok := resp["email"].(map[string]any)
	if !ok {
		t.Fatalf(`response["email"] = %T, want object`, resp["email"])
	}
	if got := record["recipient"]; got != "client@example.com" {
		t.Errorf(`record["recipient"] = %q, want "client@example.com"`, got)
	}
	if got := record["status"]; got != string(model.EmailStatusSent) {
		t.Errorf(`record["status"] = %q, want %q`, got, model.EmailStatusSent)
	}
}
