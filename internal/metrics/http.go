// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mpvctl_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mpvctl_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	httpRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	}, []string{"route"})

	libraryUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_library_uploads_total",
		Help: "Media uploads by result",
	}, []string{"result"}) // result=ok|invalid|unsupported|too_large|error

	libraryUploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mpvctl_library_upload_bytes_total",
		Help: "Bytes committed to the media directory by uploads",
	})

	libraryDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_library_deletes_total",
		Help: "Media deletions by result",
	}, []string{"result"})
)

// HTTPInFlight adjusts the in-flight gauge by delta.
func HTTPInFlight(delta float64) {
	httpRequestsInFlight.Add(delta)
}

// ObserveHTTP records one finished request. route is the router pattern, not
// the raw path.
func ObserveHTTP(method, route, status string, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// IncRateLimited counts a rejected request.
func IncRateLimited(route string) {
	httpRateLimited.WithLabelValues(route).Inc()
}

// RecordUpload counts an upload attempt and, on success, its size.
func RecordUpload(result string, size int64) {
	libraryUploads.WithLabelValues(result).Inc()
	if result == "ok" && size > 0 {
		libraryUploadBytes.Add(float64(size))
	}
}

// RecordDelete counts a deletion attempt.
func RecordDelete(result string) {
	libraryDeletes.WithLabelValues(result).Inc()
}
