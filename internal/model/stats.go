// Package model defines domain entities for the application.
package model

// AdminStats aggregates platform-wide counts for the admin endpoint.
type AdminStats struct {
	TotalUsers      int64 `json:"total_users"`
	PremiumUsers    int64 `json:"premium_users"`
	DraftsGenerated int64 `json:"drafts_generated"`
	EmailsStored    int64 `json:"emails_stored"`
	EmailsSent      int64 `json:"emails_sent"`
	ActiveAPIKeys   int64 `json:"active_api_keys"`
}
