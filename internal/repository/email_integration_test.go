//go:build integration

package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/testutil"
)

func TestIntegrationEmailRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, testutil.UniqueEmail("history"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	record := testutil.NewTestEmailRecord(t, user.ID)
	if err := repo.CreateEmailRecord(ctx, record); err != nil {
		t.Fatalf("CreateEmailRecord failed: %v", err)
	}

	retrieved, err := repo.GetEmailRecordByID(ctx, user.ID, record.ID)
	if err != nil {
		t.Fatalf("GetEmailRecordByID failed: %v", err)
	}
	if retrieved.Subject != record.Subject {
		t.Errorf("Subject mismatch: got %q, want %q", retrieved.Subject, record.Subject)
	}
	if retrieved.Status != model.EmailStatusDrafted {
		t.Errorf("Status = %s, want drafted", retrieved.Status)
	}
}

func TestIntegrationEmailRepository_OwnerScoping(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	owner := testutil.NewTestUser(t, testutil.UniqueEmail("owner"))
	stranger := testutil.NewTestUser(t, testutil.UniqueEmail("stranger"))
	for _, u := range []*model.User{owner, stranger} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	record := testutil.NewTestEmailRecord(t, owner.ID)
	if err := repo.CreateEmailRecord(ctx, record); err != nil {
		t.Fatalf("CreateEmailRecord failed: %v", err)
	}

	if _, err := repo.GetEmailRecordByID(ctx, stranger.ID, record.ID); !errors.Is(err, ErrEmailNotFound) {
		t.Errorf("Cross-account read should fail with ErrEmailNotFound, got: %v", err)
	}
}

func TestIntegrationEmailRepository_MarkSent(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, testutil.UniqueEmail("sent"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	record := testutil.NewTestEmailRecord(t, user.ID)
	if err := repo.CreateEmailRecord(ctx, record); err != nil {
		t.Fatalf("CreateEmailRecord failed: %v", err)
	}

	if err := repo.MarkEmailSent(ctx, record.ID); err != nil {
		t.Fatalf("MarkEmailSent failed: %v", err)
	}

	retrieved, _ := repo.GetEmailRecordByID(ctx, user.ID, record.ID)
	if retrieved.Status != model.EmailStatusSent {
		t.Errorf("Status = %s, want sent", retrieved.Status)
	}

	if err := repo.MarkEmailSent(ctx, "nonexistent-id"); !errors.Is(err, ErrEmailNotFound) {
		t.Errorf("Expected ErrEmailNotFound, got: %v", err)
	}
}

func TestIntegrationEmailRepository_ListPagination(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, testutil.UniqueEmail("page"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// Five records with strictly increasing timestamps.
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		record := testutil.NewTestEmailRecord(t, user.ID)
		record.ID = fmt.Sprintf("email-page-%d", i)
		record.Subject = fmt.Sprintf("Subject %d", i)
		record.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.CreateEmailRecord(ctx, record); err != nil {
			t.Fatalf("CreateEmailRecord %d failed: %v", i, err)
		}
	}

	page, err := repo.ListEmailRecords(ctx, user.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListEmailRecords failed: %v", err)
	}

	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}
	if len(page.Emails) != 2 {
		t.Fatalf("Page size = %d, want 2", len(page.Emails))
	}
	// Newest first.
	if page.Emails[0].Subject != "Subject 4" || page.Emails[1].Subject != "Subject 3" {
		t.Errorf("Unexpected order: %q, %q", page.Emails[0].Subject, page.Emails[1].Subject)
	}

	second, err := repo.ListEmailRecords(ctx, user.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListEmailRecords offset failed: %v", err)
	}
	if second.Emails[0].Subject != "Subject 2" {
		t.Errorf("Offset page starts at %q, want Subject 2", second.Emails[0].Subject)
	}

	empty, err := repo.ListEmailRecords(ctx, user.ID, 10, 100)
	if err != nil {
		t.Fatalf("ListEmailRecords past end failed: %v", err)
	}
	if len(empty.Emails) != 0 || empty.Total != 5 {
		t.Errorf("Past-end page: %d records, total %d", len(empty.Emails), empty.Total)
	}
}
