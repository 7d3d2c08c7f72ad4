package repository

import (
	"context"
	"fmt"

	"github.com/mailsmith/mailsmith/internal/model"
)

// Stats aggregates platform-wide counts for the admin endpoint.
func (r *Repository) Stats(ctx context.Context) (*model.AdminStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE plan = $1),
			(SELECT COALESCE(SUM(lifetime_used), 0) FROM users),
			(SELECT COUNT(*) FROM email_history),
			(SELECT COUNT(*) FROM email_history WHERE status = $2),
			(SELECT COUNT(*) FROM api_keys WHERE revoked_at IS NULL)
	`

	var stats model.AdminStats
	err := r.pool.QueryRow(ctx, query, model.PlanPremium, model.EmailStatusSent).Scan(
		&stats.TotalUsers,
		&stats.PremiumUsers,
		&stats.DraftsGenerated,
		&stats.EmailsStored,
		&stats.EmailsSent,
		&stats.ActiveAPIKeys,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	return &stats, nil
}
