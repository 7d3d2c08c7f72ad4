package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mailsmith/mailsmith/internal/llm"
	"github.com/mailsmith/mailsmith/internal/mailer"
	"github.com/mailsmith/mailsmith/internal/metrics"
	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/repository"
)

// Draft service errors.
var (
	ErrMissingBusiness     = errors.New("business is required")
	ErrMissingContext      = errors.New("context is required")
	ErrMissingEmail        = errors.New("email is required")
	ErrMissingInstructions = errors.New("instructions are required")
	ErrMissingRecipient    = errors.New("recipient is required")
	ErrMissingSubject      = errors.New("subject is required")
	ErrMissingBody         = errors.New("body is required")
	ErrQuotaExceeded       = errors.New("free plan generation limit reached")
	ErrUpstreamFailed      = errors.New("draft generation is temporarily unavailable")
	ErrSendFailed          = errors.New("email dispatch failed")
)

const generateSystemPrompt = "You are an assistant that drafts professional business emails. " +
	"Reply with the complete email only, starting with a subject line."

const improveSystemPrompt = "You are an assistant that refines business emails while preserving " +
	"the author's edits and intent. Reply with the improved email only."

// DraftService orchestrates quota-gated email drafting and dispatch.
type DraftService struct {
	users     UserStore
	history   EmailStore
	docs      DocumentStore
	llm       llm.Client
	sender    mailer.Sender
	freeLimit int
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewDraftService creates a new DraftService.
func NewDraftService(
	users UserStore,
	history EmailStore,
	docs DocumentStore,
	llmClient llm.Client,
	sender mailer.Sender,
	freeLimit int,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *DraftService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &DraftService{
		users:     users,
		history:   history,
		docs:      docs,
		llm:       llmClient,
		sender:    sender,
		freeLimit: freeLimit,
		metrics:   recorder,
		logger:    logger,
	}
}

// GenerateInput defines input for drafting a new email.
type GenerateInput struct {
	Business  string
	Context   string
	Recipient string
	Tone      string
}

// Generate drafts a new email for the user, enforcing the free-plan quota.
// Quota is consumed only after the upstream call succeeded; a failed LLM
// call never changes the counters.
func (s *DraftService) Generate(ctx context.Context, user *model.User, input GenerateInput) (string, error) {
	if strings.TrimSpace(input.Business) == "" {
		return "", ErrMissingBusiness
	}
	if strings.TrimSpace(input.Context) == "" {
		return "", ErrMissingContext
	}

	// Pre-check so a user at the limit never pays for an upstream call.
	// The authoritative check is the conditional update below.
	if !user.CanGenerate(s.freeLimit) {
		s.metrics.IncQuotaRejected()
		return "", ErrQuotaExceeded
	}

	draft, err := s.complete(ctx, generateSystemPrompt, s.buildGeneratePrompt(ctx, user, input))
	if err != nil {
		return "", err
	}

	if err := s.users.ConsumeQuota(ctx, user.ID, s.freeLimit); err != nil {
		if errors.Is(err, repository.ErrQuotaExceeded) {
			// Lost the race at the boundary to a concurrent request.
			s.metrics.IncQuotaRejected()
			return "", ErrQuotaExceeded
		}
		return "", fmt.Errorf("consume quota: %w", err)
	}

	s.metrics.IncDraftGenerated()
	s.logger.Info("draft generated", slog.String("user_id", user.ID))

	return draft, nil
}

// ImproveInput defines input for refining an edited email.
type ImproveInput struct {
	Email        string
	Instructions string
}

// Improve refines the user's edited email. Refinement is not quota-metered.
func (s *DraftService) Improve(ctx context.Context, user *model.User, input ImproveInput) (string, error) {
	if strings.TrimSpace(input.Email) == "" {
		return "", ErrMissingEmail
	}
	if strings.TrimSpace(input.Instructions) == "" {
		return "", ErrMissingInstructions
	}

	prompt := fmt.Sprintf("Improve the following email.\n\nInstructions: %s\n\nEmail:\n%s",
		input.Instructions, input.Email)

	improved, err := s.complete(ctx, improveSystemPrompt, prompt)
	if err != nil {
		return "", err
	}

	s.metrics.IncDraftImproved()

	return improved, nil
}

// SendInput defines input for recording and dispatching a finished email.
type SendInput struct {
	To      string
	Subject string
	Body    string
}

// Send records the email in the user's history and dispatches it through the
// mail provider. The record is kept as drafted if dispatch fails.
func (s *DraftService) Send(ctx context.Context, user *model.User, input SendInput) (*model.EmailRecord, error) {
	if !emailRegex.MatchString(input.To) {
		return nil, ErrMissingRecipient
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, ErrMissingSubject
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrMissingBody
	}

	record := &model.EmailRecord{
		ID:        ulid.Make().String(),
		UserID:    user.ID,
		Recipient: input.To,
		Subject:   input.Subject,
		Body:      input.Body,
		Status:    model.EmailStatusDrafted,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.history.CreateEmailRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("record email: %w", err)
	}

	msg := mailer.Message{
		To:       input.To,
		Subject:  input.Subject,
		TextBody: input.Body,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.IncEmailSent("failed")
		s.logger.Error("email dispatch failed",
			slog.String("user_id", user.ID),
			slog.String("email_id", record.ID),
			slog.String("error", err.Error()),
		)
		return nil, ErrSendFailed
	}

	if err := s.history.MarkEmailSent(ctx, record.ID); err != nil {
		// The mail left the building; a stale status is the lesser failure.
		s.logger.Warn("failed to mark email sent",
			slog.String("email_id", record.ID),
			slog.String("error", err.Error()),
		)
	} else {
		record.Status = model.EmailStatusSent
	}

	s.metrics.IncEmailSent("success")

	return record, nil
}

// complete wraps the LLM call with timing and error translation.
func (s *DraftService) complete(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	text, err := s.llm.Complete(ctx, llm.CompletionRequest{System: system, Prompt: prompt})
	s.metrics.ObserveCompletionDuration(time.Since(start))

	if err != nil {
		s.logger.Error("completion call failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %w", ErrUpstreamFailed, err)
	}

	return strings.TrimSpace(text), nil
}

// buildGeneratePrompt assembles the drafting prompt, folding in the user's
// stored tone profile when one exists.
func (s *DraftService) buildGeneratePrompt(ctx context.Context, user *model.User, input GenerateInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Draft an email for a %s business.\nContext: %s\n", input.Business, input.Context)
	if input.Recipient != "" {
		fmt.Fprintf(&b, "Recipient: %s\n", input.Recipient)
	}
	if input.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", input.Tone)
	}

	if s.docs != nil {
		if doc, err := s.docs.GetDocument(ctx, user.ID, model.DocumentToneProfile); err == nil {
			if profile := compactJSON(doc.Data); profile != "" && profile != "{}" {
				fmt.Fprintf(&b, "Writing style profile: %s\n", profile)
			}
		}
	}

	return b.String()
}

// compactJSON renders a raw JSON payload without insignificant whitespace.
func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	return buf.String()
}
