//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mailsmith/mailsmith/internal/model"
	"github.com/mailsmith/mailsmith/internal/testutil"
)

func newCacheTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	cache, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() {
		_ = cache.Close()
	})

	if err := testutil.FlushRedis(ctx, cache.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	return ctx, cache
}

func TestIntegrationAuthCache_RoundTrip(t *testing.T) {
	ctx, cache := newCacheTestEnv(t)

	authCtx := &model.AuthContext{
		UserID:      "user-1",
		Method:      model.AuthMethodAPIKey,
		KeyID:       "key-1",
		KeyPrefix:   "ab12cd",
		Permissions: []string{model.PermissionRead, model.PermissionWrite},
	}

	if err := cache.SetAuthContext(ctx, "cache-key-1", authCtx); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}

	cached, err := cache.GetAuthContext(ctx, "cache-key-1")
	if err != nil {
		t.Fatalf("GetAuthContext failed: %v", err)
	}
	if cached == nil {
		t.Fatal("Expected cache hit")
	}
	if cached.UserID != "user-1" || cached.KeyID != "key-1" {
		t.Errorf("Cached context = %+v", cached)
	}
	if cached.Method != model.AuthMethodAPIKey {
		t.Errorf("Method = %s, want api_key", cached.Method)
	}
	if len(cached.Permissions) != 2 {
		t.Errorf("Permissions = %v", cached.Permissions)
	}
}

func TestIntegrationAuthCache_Miss(t *testing.T) {
	ctx, cache := newCacheTestEnv(t)

	cached, err := cache.GetAuthContext(ctx, "never-set")
	if err != nil {
		t.Fatalf("GetAuthContext failed: %v", err)
	}
	if cached != nil {
		t.Errorf("Expected miss, got %+v", cached)
	}
}

func TestIntegrationAuthCache_Delete(t *testing.T) {
	ctx, cache := newCacheTestEnv(t)

	authCtx := &model.AuthContext{
		UserID: "user-1",
		Method: model.AuthMethodAPIKey,
		KeyID:  "key-1",
	}
	if err := cache.SetAuthContext(ctx, "revoked-key", authCtx); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}

	if err := cache.DeleteAuthContext(ctx, "revoked-key"); err != nil {
		t.Fatalf("DeleteAuthContext failed: %v", err)
	}

	cached, _ := cache.GetAuthContext(ctx, "revoked-key")
	if cached != nil {
		t.Error("Deleted entry should not be served")
	}
}

func TestIntegrationRateLimit_KeyBucket(t *testing.T) {
	ctx, cache := newCacheTestEnv(t)

	keyID := fmt.Sprintf("key-%d", time.Now().UnixNano())
	const burst = 3

	// The burst passes, then the bucket runs dry.
	for i := 0; i < burst; i++ {
		result, err := cache.CheckKeyRateLimit(ctx, keyID, 60, burst)
		if err != nil {
			t.Fatalf("CheckKeyRateLimit %d failed: %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	result, err := cache.CheckKeyRateLimit(ctx, keyID, 60, burst)
	if err != nil {
		t.Fatalf("CheckKeyRateLimit failed: %v", err)
	}
	if result.Allowed {
		t.Error("Request past burst should be denied")
	}
	if result.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", result.RetryAfter)
	}
}

func TestIntegrationRateLimit_ZeroRateIsUnlimited(t *testing.T) {
	ctx, cache := newCacheTestEnv(t)

	for i := 0; i < 10; i++ {
		result, err := cache.CheckKeyRateLimit(ctx, "unlimited-key", 0, 5)
		if err != nil {
			t.Fatalf("CheckKeyRateLimit failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("Unlimited key should always pass, denied at %d", i+1)
		}
	}
}

func TestIntegrationRateLimit_IPBucket(t *testing.T) {
	ctx, cache := newCacheTestEnv(t)

	ip := "203.0.113.7"
	const burst = 2

	for i := 0; i < burst; i++ {
		result, err := cache.CheckIPRateLimit(ctx, ip, 1, burst)
		if err != nil {
			t.Fatalf("CheckIPRateLimit %d failed: %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	result, err := cache.CheckIPRateLimit(ctx, ip, 1, burst)
	if err != nil {
		t.Fatalf("CheckIPRateLimit failed: %v", err)
	}
	if result.Allowed {
		t.Error("Request past burst should be denied")
	}

	// A different IP has its own bucket.
	other, err := cache.CheckIPRateLimit(ctx, "203.0.113.8", 1, burst)
	if err != nil {
		t.Fatalf("CheckIPRateLimit failed: %v", err)
	}
	if !other.Allowed {
		t.Error("Different IP should have a fresh bucket")
	}
}
