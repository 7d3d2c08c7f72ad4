// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Drafting metrics
	IncDraftGenerated()
	IncDraftImproved()
	IncQuotaRejected()
	ObserveCompletionDuration(duration time.Duration)

	// Mail dispatch metrics
	IncEmailSent(status string) // status: "success" or "failed"

	// Auth metrics
	IncAuthSuccess(method string) // method: "session" or "api_key"
	IncAuthFailure(reason string)
	IncAuthCacheHit()
	IncAuthCacheMiss()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Snapshot is a point-in-time view of collected counters.
type Snapshot struct {
	DraftsGenerated   int64            `json:"drafts_generated"`
	DraftsImproved    int64            `json:"drafts_improved"`
	QuotaRejections   int64            `json:"quota_rejections"`
	EmailsSent        map[string]int64 `json:"emails_sent"`
	AuthSuccesses     map[string]int64 `json:"auth_successes"`
	AuthFailures      map[string]int64 `json:"auth_failures"`
	AuthCacheHits     int64            `json:"auth_cache_hits"`
	AuthCacheMisses   int64            `json:"auth_cache_misses"`
	CompletionCalls   int64            `json:"completion_calls"`
	CompletionTotalMs int64            `json:"completion_total_ms"`
}
