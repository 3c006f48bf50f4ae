package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	PostsCreated           uint64
	PostsUpdated           uint64
	PostsDeleted           uint64
	NotModified            uint64
	LastModifiedCacheHits  uint64
	LastModifiedCacheMiss  uint64
	RateLimited            uint64
	RequestDurationCount   uint64
	RequestDurationTotalNs int64
}

// InMemoryRecorder keeps counters in process memory.
type InMemoryRecorder struct {
	postsCreated           atomic.Uint64
	postsUpdated           atomic.Uint64
	postsDeleted           atomic.Uint64
	notModified            atomic.Uint64
	lastModifiedCacheHits  atomic.Uint64
	lastModifiedCacheMiss  atomic.Uint64
	rateLimited            atomic.Uint64
	requestDurationCount   atomic.Uint64
	requestDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		PostsCreated:           m.postsCreated.Load(),
		PostsUpdated:           m.postsUpdated.Load(),
		PostsDeleted:           m.postsDeleted.Load(),
		NotModified:            m.notModified.Load(),
		LastModifiedCacheHits:  m.lastModifiedCacheHits.Load(),
		LastModifiedCacheMiss:  m.lastModifiedCacheMiss.Load(),
		RateLimited:            m.rateLimited.Load(),
		RequestDurationCount:   m.requestDurationCount.Load(),
		RequestDurationTotalNs: m.requestDurationTotalNs.Load(),
	}
}

func (m *InMemoryRecorder) IncPostCreated()           { m.postsCreated.Add(1) }
func (m *InMemoryRecorder) IncPostUpdated()           { m.postsUpdated.Add(1) }
func (m *InMemoryRecorder) IncPostDeleted()           { m.postsDeleted.Add(1) }
func (m *InMemoryRecorder) IncNotModified()           { m.notModified.Add(1) }
func (m *InMemoryRecorder) IncLastModifiedCacheHit()  { m.lastModifiedCacheHits.Add(1) }
func (m *InMemoryRecorder) IncLastModifiedCacheMiss() { m.lastModifiedCacheMiss.Add(1) }
func (m *InMemoryRecorder) IncRateLimited()           { m.rateLimited.Add(1) }

// ObserveRequestDuration records handler latency.
func (m *InMemoryRecorder) ObserveRequestDuration(duration time.Duration) {
	m.requestDurationCount.Add(1)
	m.requestDurationTotalNs.Add(duration.Nanoseconds())
}
