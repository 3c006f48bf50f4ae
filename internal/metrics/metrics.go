// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the posts API.
type Recorder interface {
	IncPostCreated()
	IncPostUpdated()
	IncPostDeleted()

	// Conditional GET
	IncNotModified()
	IncLastModifiedCacheHit()
	IncLastModifiedCacheMiss()

	IncRateLimited()
	ObserveRequestDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
