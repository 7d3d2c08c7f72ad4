package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mailsmith/mailsmith/internal/llm"
	"github.com/mailsmith/mailsmith/internal/mailer"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	consumeErr error
	consumed   int
	lastLogins int
}

func newFakeUserStore(users ...*model.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]*model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeUserStore) UpdateLastLogin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLogins++
	return nil
}

func (s *fakeUserStore) ConsumeQuota(_ context.Context, id string, lifetimeLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumeErr != nil {
		return s.consumeErr
	}
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if !u.IsPremium() && u.LifetimeUsed >= lifetimeLimit {
		return repository.ErrQuotaExceeded
	}
	u.LifetimeUsed++
	u.DailyUsed++
	s.consumed++
	return nil
}

func (s *fakeUserStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// fakeOTPStore is an in-memory OTPStore keyed by email.
type fakeOTPStore struct {
	mu         sync.Mutex
	challenges map[string]*model.OTPChallenge
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{challenges: make(map[string]*model.OTPChallenge)}
}

func (s *fakeOTPStore) UpsertOTPChallenge(_ context.Context, c *model.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *c
	copy.Attempts = 0
	copy.VerifiedAt = nil
	s.challenges[c.Email] = &copy
	return nil
}

func (s *fakeOTPStore) GetOTPChallenge(_ context.Context, email string) (*model.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[email]
	if !ok {
		return nil, repository.ErrOTPNotFound
	}
	copy := *c
	return &copy, nil
}

func (s *fakeOTPStore) IncrementOTPAttempts(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[email]
	if !ok {
		return repository.ErrOTPNotFound
	}
	c.Attempts++
	return nil
}

func (s *fakeOTPStore) MarkOTPVerified(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[email]
	if !ok {
		return repository.ErrOTPNotFound
	}
	now := c.CreatedAt
	c.VerifiedAt = &now
	return nil
}

func (s *fakeOTPStore) DeleteOTPChallenge(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, email)
	return nil
}

// fakeEmailStore is an in-memory EmailStore.
type fakeEmailStore struct {
	mu      sync.Mutex
	records map[string]*model.EmailRecord
	failOn  string // method name to fail
}

func newFakeEmailStore() *fakeEmailStore {
	return &fakeEmailStore{records: make(map[string]*model.EmailRecord)}
}

func (s *fakeEmailStore) CreateEmailRecord(_ context.Context, rec *model.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "create" {
		return errors.New("create failed")
	}
	copy := *rec
	s.records[rec.ID] = &copy
	return nil
}

func (s *fakeEmailStore) MarkEmailSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "mark" {
		return errors.New("mark failed")
	}
	rec, ok := s.records[id]
	if !ok {
		return repository.ErrEmailNotFound
	}
	rec.Status = model.EmailStatusSent
	return nil
}

func (s *fakeEmailStore) GetEmailRecordByID(_ context.Context, userID, id string) (*model.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.UserID != userID {
		return nil, repository.ErrEmailNotFound
	}
	copy := *rec
	return &copy, nil
}

func (s *fakeEmailStore) ListEmailRecords(_ context.Context, userID string, limit, offset int) (*model.EmailHistoryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var emails []*model.EmailRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			copy := *rec
			emails = append(emails, &copy)
		}
	}
	return &model.EmailHistoryPage{
		Emails: emails,
		Total:  int64(len(emails)),
		Limit:  limit,
		Offset: offset,
	}, nil
}

// fakeDocStore is an in-memory DocumentStore.
type fakeDocStore struct {
	mu   sync.Mutex
	docs map[string]*model.Document // userID + "/" + kind
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string]*model.Document)}
}

func (s *fakeDocStore) UpsertDocument(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *doc
	s.docs[doc.UserID+"/"+string(doc.Kind)] = &copy
	return nil
}

func (s *fakeDocStore) GetDocument(_ context.Context, userID string, kind model.DocumentKind) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID+"/"+string(kind)]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	copy := *doc
	return &copy, nil
}

// fakeLLM records prompts and returns a canned completion.
type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	lastReq  llm.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// fakeSender records outbound messages.
type fakeSender struct {
	mu       sync.Mutex
	err      error
	messages []mailer.Message
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}
