package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mailsmith/mailsmith/internal/model"
)

// Common errors for email history operations.
var (
	ErrEmailNotFound = errors.New("email record not found")
)

// CreateEmailRecord inserts a new email history row.
func (r *Repository) CreateEmailRecord(ctx context.Context, record *model.EmailRecord) error {
	query := `
		INSERT INTO email_history (id, user_id, recipient, subject, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.Recipient,
		record.Subject,
		record.Body,
		record.Status,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create email record: %w", err)
	}

	return nil
}

// MarkEmailSent transitions a drafted record to sent.
func (r *Repository) MarkEmailSent(ctx context.Context, id string) error {
	query := `UPDATE email_history SET status = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, model.EmailStatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrEmailNotFound
	}

	return nil
}

// GetEmailRecordByID retrieves a single email record scoped to its owner.
// Scoping by user prevents cross-account reads by ID guessing.
func (r *Repository) GetEmailRecordByID(ctx context.Context, userID, id string) (*model.EmailRecord, error) {
	query := `
		SELECT id, user_id, recipient, subject, body, status, created_at
		FROM email_history
		WHERE id = $1 AND user_id = $2
	`

	var rec model.EmailRecord
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Recipient,
		&rec.Subject,
		&rec.Body,
		&rec.Status,
		&rec.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("failed to get email record: %w", err)
	}

	return &rec, nil
}

// ListEmailRecords returns a page of the user's email history, newest first.
func (r *Repository) ListEmailRecords(ctx context.Context, userID string, limit, offset int) (*model.EmailHistoryPage, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM email_history WHERE user_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count email records: %w", err)
	}

	query := `
		SELECT id, user_id, recipient, subject, body, status, created_at
		FROM email_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list email records: %w", err)
	}
	defer rows.Close()

	emails := make([]*model.EmailRecord, 0, limit)
	for rows.Next() {
		var rec model.EmailRecord
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Recipient,
			&rec.Subject,
			&rec.Body,
			&rec.Status,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email record: %w", err)
		}
		emails = append(emails, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating email records: %w", err)
	}

	return &model.EmailHistoryPage{
		Emails: emails,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}
