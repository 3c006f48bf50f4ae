package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncPostCreated()                               {}
func (n *NoopRecorder) IncPostUpdated()                               {}
func (n *NoopRecorder) IncPostDeleted()                               {}
func (n *NoopRecorder) IncNotModified()                               {}
func (n *NoopRecorder) IncLastModifiedCacheHit()                      {}
func (n *NoopRecorder) IncLastModifiedCacheMiss()                     {}
func (n *NoopRecorder) IncRateLimited()                               {}
func (n *NoopRecorder) ObserveRequestDuration(duration time.Duration) {}
