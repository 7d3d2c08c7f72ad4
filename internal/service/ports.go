// Package service provides business logic for the application.
package service

import (
	"context"

	"github.com/mailsmith/mailsmith/internal/model"
)

// UserStore is the persistence surface the services need for users.
// *repository.Repository satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
	ConsumeQuota(ctx context.Context, id string, lifetimeLimit int) error
	DeleteUser(ctx context.Context, id string) error
}

// OTPStore is the persistence surface for OTP challenges.
type OTPStore interface {
	UpsertOTPChallenge(ctx context.Context, challenge *model.OTPChallenge) error
	GetOTPChallenge(ctx context.Context, email string) (*model.OTPChallenge, error)
	IncrementOTPAttempts(ctx context.Context, email string) error
	MarkOTPVerified(ctx context.Context, email string) error
	DeleteOTPChallenge(ctx context.Context, email string) error
}

// EmailStore is the persistence surface for email history.
type EmailStore interface {
	CreateEmailRecord(ctx context.Context, record *model.EmailRecord) error
	MarkEmailSent(ctx context.Context, id string) error
	GetEmailRecordByID(ctx context.Context, userID, id string) (*model.EmailRecord, error)
	ListEmailRecords(ctx context.Context, userID string, limit, offset int) (*model.EmailHistoryPage, error)
}

// DocumentStore is the persistence surface for user JSON documents.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, userID string, kind model.DocumentKind) (*model.Document, error)
}
