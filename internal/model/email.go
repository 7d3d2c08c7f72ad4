// Package model defines domain entities for the application.
package model

import "time"

// EmailStatus represents the delivery status of a stored email.
type EmailStatus string

const (
	EmailStatusDrafted EmailStatus = "drafted"
	EmailStatusSent    EmailStatus = "sent"
)

// EmailRecord represents an email kept in the user's history.
type EmailRecord struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Recipient string      `json:"recipient,omitempty"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	Status    EmailStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// EmailHistoryPage is a paginated slice of email history.
type EmailHistoryPage struct {
	Emails []*EmailRecord `json:"emails"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
