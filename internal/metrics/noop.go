package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncDraftGenerated is a no-op.
func (n *NoopRecorder) IncDraftGenerated() {}

// IncDraftImproved is a no-op.
func (n *NoopRecorder) IncDraftImproved() {}

// IncQuotaRejected is a no-op.
func (n *NoopRecorder) IncQuotaRejected() {}

// ObserveCompletionDuration is a no-op.
func (n *NoopRecorder) ObserveCompletionDuration(duration time.Duration) {}

// IncEmailSent is a no-op.
func (n *NoopRecorder) IncEmailSent(status string) {}

// IncAuthSuccess is a no-op.
func (n *NoopRecorder) IncAuthSuccess(method string) {}

// IncAuthFailure is a no-op.
func (n *NoopRecorder) IncAuthFailure(reason string) {}

// IncAuthCacheHit is a no-op.
func (n *NoopRecorder) IncAuthCacheHit() {}

// IncAuthCacheMiss is a no-op.
func (n *NoopRecorder) IncAuthCacheMiss() {}
