package metrics

import (
	"sync"
	"time"
)

// InMemoryRecorder implements Recorder with in-process counters.
// Suitable for the admin stats endpoint and tests.
type InMemoryRecorder struct {
	mu sync.Mutex

	draftsGenerated   int64
	draftsImproved    int64
	quotaRejections   int64
	emailsSent        map[string]int64
	authSuccesses     map[string]int64
	authFailures      map[string]int64
	authCacheHits     int64
	authCacheMisses   int64
	completionCalls   int64
	completionTotalMs int64
}

// NewInMemory returns a Recorder backed by in-process counters.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		emailsSent:    make(map[string]int64),
		authSuccesses: make(map[string]int64),
		authFailures:  make(map[string]int64),
	}
}

// IncDraftGenerated increments the generated-draft counter.
func (m *InMemoryRecorder) IncDraftGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draftsGenerated++
}

// IncDraftImproved increments the improved-draft counter.
func (m *InMemoryRecorder) IncDraftImproved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draftsImproved++
}

// IncQuotaRejected increments the quota-rejection counter.
func (m *InMemoryRecorder) IncQuotaRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotaRejections++
}

// ObserveCompletionDuration records one completion call duration.
func (m *InMemoryRecorder) ObserveCompletionDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionCalls++
	m.completionTotalMs += duration.Milliseconds()
}

// IncEmailSent increments the dispatch counter for a status.
func (m *InMemoryRecorder) IncEmailSent(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailsSent[status]++
}

// IncAuthSuccess increments the auth success counter for a method.
func (m *InMemoryRecorder) IncAuthSuccess(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authSuccesses[method]++
}

// IncAuthFailure increments the auth failure counter for a reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFailures[reason]++
}

// IncAuthCacheHit increments the auth cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCacheHits++
}

// IncAuthCacheMiss increments the auth cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCacheMisses++
}

// Snapshot returns a copy of the current counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		DraftsGenerated:   m.draftsGenerated,
		DraftsImproved:    m.draftsImproved,
		QuotaRejections:   m.quotaRejections,
		EmailsSent:        copyMap(m.emailsSent),
		AuthSuccesses:     copyMap(m.authSuccesses),
		AuthFailures:      copyMap(m.authFailures),
		AuthCacheHits:     m.authCacheHits,
		AuthCacheMisses:   m.authCacheMisses,
		CompletionCalls:   m.completionCalls,
		CompletionTotalMs: m.completionTotalMs,
	}
}

func copyMap(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
