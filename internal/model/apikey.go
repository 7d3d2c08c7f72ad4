// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Permission constants for API key authorization.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

// ValidPermissions contains all valid permission values.
var ValidPermissions = []string{PermissionRead, PermissionWrite, PermissionAdmin}

// APIKey represents an API key entity.
type APIKey struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	KeyHash     string     `json:"-"` // Never serialize
	KeyPrefix   string     `json:"key_prefix"`
	Permissions []string   `json:"permissions"`
	Name        string     `json:"name,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsActive returns true if the key has not been revoked.
func (k *APIKey) IsActive() bool {
	return k.RevokedAt == nil
}

// HasPermission checks if the key carries a specific permission.
// Admin implies all other permissions.
func (k *APIKey) HasPermission(perm string) bool {
	if slices.Contains(k.Permissions, PermissionAdmin) {
		return true
	}
	return slices.Contains(k.Permissions, perm)
}

// Auth method constants for AuthContext.
const (
	AuthMethodSession = "session"
	AuthMethodAPIKey  = "api_key"
)

// AuthContext holds the authenticated identity of a request.
// It is injected into the request context by the auth middleware.
type AuthContext struct {
	UserID      string
	Method      string // session or api_key
	KeyID       string // set for api_key auth only
	KeyPrefix   string // set for api_key auth only
	Permissions []string
	User        *User // resolved user record, set for session auth
}

// HasPermission checks if the identity carries a specific permission.
// Session identities carry all permissions; for API keys admin implies all.
func (a *AuthContext) HasPermission(perm string) bool {
	if a.Method == AuthMethodSession {
		return true
	}
	if slices.Contains(a.Permissions, PermissionAdmin) {
		return true
	}
	return slices.Contains(a.Permissions, perm)
}

// APIKeyCreateRequest represents a request to create a new API key.
type APIKeyCreateRequest struct {
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions"`
}

// APIKeyResponse represents the response for an API key (without secrets).
type APIKeyResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	KeyPrefix   string     `json:"key_prefix"`
	Permissions []string   `json:"permissions"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// ToResponse converts an APIKey to APIKeyResponse.
func (k *APIKey) ToResponse() APIKeyResponse {
	return APIKeyResponse{
		ID:          k.ID,
		Name:        k.Name,
		KeyPrefix:   k.KeyPrefix,
		Permissions: k.Permissions,
		Active:      k.IsActive(),
		CreatedAt:   k.CreatedAt,
		LastUsedAt:  k.LastUsedAt,
	}
}

// APIKeyCreateResponse includes the plaintext key (shown only once).
type APIKeyCreateResponse struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"` // Plaintext - display once only!
	Name        string    `json:"name,omitempty"`
	KeyPrefix   string    `json:"key_prefix"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}
