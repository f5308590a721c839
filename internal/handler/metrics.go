package handler

import (
	"fmt"
	"net/http"

	"github.com/userapi/userapi/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns the user counters in Prometheus text exposition format.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "users_updated_total %d\n", snap.UsersUpdated)
	writeMetric(w, "users_deleted_total %d\n", snap.UsersDeleted)
	writeMetric(w, "users_activated_total %d\n", snap.UsersActivated)
	writeMetric(w, "users_deactivated_total %d\n", snap.UsersDeactivated)

	writeMetric(w, "users_rejected_total{reason=\"duplicate_username\"} %d\n", snap.RejectedDuplicateUsername)
	writeMetric(w, "users_rejected_total{reason=\"duplicate_email\"} %d\n", snap.RejectedDuplicateEmail)
	writeMetric(w, "users_rejected_total{reason=\"not_found\"} %d\n", snap.RejectedNotFound)
	writeMetric(w, "users_rejected_total{reason=\"invalid\"} %d\n", snap.RejectedInvalid)

	writeMetric(w, "user_events_published_total{status=\"success\"} %d\n", snap.EventsPublished)
	writeMetric(w, "user_events_published_total{status=\"dropped\"} %d\n", snap.EventsDropped)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
