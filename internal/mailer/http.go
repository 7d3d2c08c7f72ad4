package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 15 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second

	sendPath = "/emails"
)

// ErrProvider indicates the mail provider rejected or failed the dispatch.
var ErrProvider = errors.New("mail provider error")

// HTTPSender dispatches mail through a transactional-email HTTP API.
type HTTPSender struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
}

// NewHTTPSender creates a Sender backed by an HTTP provider.
func NewHTTPSender(baseURL, apiKey, from string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = ClientTimeout
	}

	return &HTTPSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   DialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// sendRequest is the provider wire format for a dispatch call.
type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Send dispatches a single message. Failures are not retried.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(sendRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.TextBody,
		HTML:    msg.HTMLBody,
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("User-Agent", "Mailsmith/1.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}

	return nil
}
