package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailsmith/mailsmith/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for API-key auth context cache.
	authCachePrefix = "auth:key:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
)

// cachedKeyAuth represents an API-key auth context stored in Redis.
// Session tokens are never cached; they verify statelessly.
type cachedKeyAuth struct {
	KeyID       string   `json:"key_id"`
	KeyPrefix   string   `json:"key_prefix"`
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

// GetAuthContext retrieves a cached API-key auth context by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	key := authCachePrefix + cacheKey

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached cachedKeyAuth
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		UserID:      cached.UserID,
		Method:      model.AuthMethodAPIKey,
		KeyID:       cached.KeyID,
		KeyPrefix:   cached.KeyPrefix,
		Permissions: cached.Permissions,
	}, nil
}

// SetAuthContext caches an API-key auth context.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	key := authCachePrefix + cacheKey

	cached := cachedKeyAuth{
		KeyID:       auth.KeyID,
		KeyPrefix:   auth.KeyPrefix,
		UserID:      auth.UserID,
		Permissions: auth.Permissions,
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, key, data, authCacheTTL).Err()
}

// DeleteAuthContext removes a cached auth context.
// Used when a key is revoked.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	key := authCachePrefix + cacheKey
	return c.client.Del(ctx, key).Err()
}
