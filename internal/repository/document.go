package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mailsmith/mailsmith/internal/model"
)

// Common errors for document operations.
var (
	ErrDocumentNotFound = errors.New("document not found")
)

// UpsertDocument creates or replaces a user-owned JSON document.
func (r *Repository) UpsertDocument(ctx context.Context, doc *model.Document) error {
	query := `
		INSERT INTO user_documents (user_id, kind, schema_version, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, kind) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		doc.UserID,
		doc.Kind,
		doc.SchemaVersion,
		doc.Data,
		time.Now().UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// GetDocument retrieves a user-owned JSON document by kind.
func (r *Repository) GetDocument(ctx context.Context, userID string, kind model.DocumentKind) (*model.Document, error) {
	query := `
		SELECT user_id, kind, schema_version, data, updated_at
		FROM user_documents
		WHERE user_id = $1 AND kind = $2
	`

	var doc model.Document
	err := r.pool.QueryRow(ctx, query, userID, kind).Scan(
		&doc.UserID,
		&doc.Kind,
		&doc.SchemaVersion,
		&doc.Data,
		&doc.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}
