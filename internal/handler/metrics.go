package handler

import (
	"fmt"
	"net/http"

	"github.com/postkeeper/postkeeper/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "postkeeper_posts_created_total %d\n", snap.PostsCreated)
	writeMetric(w, "postkeeper_posts_updated_total %d\n", snap.PostsUpdated)
	writeMetric(w, "postkeeper_posts_deleted_total %d\n", snap.PostsDeleted)

	writeMetric(w, "postkeeper_not_modified_total %d\n", snap.NotModified)
	writeMetric(w, "postkeeper_last_modified_cache_hits_total %d\n", snap.LastModifiedCacheHits)
	writeMetric(w, "postkeeper_last_modified_cache_misses_total %d\n", snap.LastModifiedCacheMiss)

	writeMetric(w, "postkeeper_rate_limited_total %d\n", snap.RateLimited)
	writeMetric(w, "postkeeper_request_duration_seconds_count %d\n", snap.RequestDurationCount)
	writeMetric(w, "postkeeper_request_duration_seconds_sum %.6f\n", float64(snap.RequestDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
