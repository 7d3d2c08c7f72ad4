// Package mailer provides outbound email dispatch with pluggable providers.
package mailer

import "context"

// Message represents an email message to be sent.
type Message struct {
	To       string // recipient email address
	Subject  string // email subject
	TextBody string // plain-text body
	HTMLBody string // optional HTML body
}

// Sender is the interface that all email providers must implement.
// The abstraction allows swapping providers without touching business logic.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Noop discards all messages. Used in development and tests.
type Noop struct{}

// NewNoop returns a Sender that discards all messages.
func NewNoop() *Noop {
	return &Noop{}
}

// Send discards the message.
func (n *Noop) Send(ctx context.Context, msg Message) error {
	return nil
}
