package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct {
}

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minidrive_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path", "status"})

	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minidrive_active_connections",
		Help: "Number of active connections",
	})

	totalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minidrive_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	uploadSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "minidrive_upload_size_bytes",
		Help:    "Size of uploaded files in bytes",
		Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 100 * 1024 * 1024},
	})

	filesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minidrive_files_uploaded_total",
		Help: "Total number of files uploaded",
	})

	filesDownloaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minidrive_files_downloaded_total",
		Help: "Total number of file downloads",
	}, []string{"kind"})

	sharesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minidrive_shares_issued_total",
		Help: "Total number of share links issued",
	})

	quotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minidrive_quota_rejections_total",
		Help: "Total number of uploads rejected for exceeding quota",
	})

	storageUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minidrive_storage_used_bytes",
		Help: "Total storage used in bytes",
	})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minidrive_auth_failures_total",
		Help: "Total number of failed authentication attempts",
	}, []string{"reason"})
)

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handler serves the default registry in Prometheus text format.
func (h *MetricsHandler) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		mfs, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			return c.Status(500).SendString("Failed to gather metrics")
		}

		var sb strings.Builder
		for _, mf := range mfs {
			if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
				return c.Status(500).SendString("Failed to format metrics")
			}
		}

		c.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		return c.SendString(sb.String())
	}
}

// MetricsMiddleware records HTTP metrics for each request. Status codes are
// bucketed by class to bound label cardinality.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		activeConnections.Inc()
		defer activeConnections.Dec()
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		path := c.Route().Path
		if path == "" {
			path = "__unmatched__"
		}

		statusStr := "2xx"
		switch {
		case status >= 500:
			statusStr = "5xx"
		case status >= 400:
			statusStr = "4xx"
		case status >= 300:
			statusStr = "3xx"
		}

		totalRequests.WithLabelValues(c.Method(), path, statusStr).Inc()
		httpDuration.WithLabelValues(c.Method(), path, statusStr).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordUpload records a successful upload.
func RecordUpload(size float64) {
	uploadSize.Observe(size)
	filesUploaded.Inc()
}

// RecordDownload records a served download; kind is "owner" or "shared".
func RecordDownload(kind string) {
	filesDownloaded.WithLabelValues(kind).Inc()
}

// RecordShareIssued records a minted share link.
func RecordShareIssued() {
	sharesIssued.Inc()
}

// RecordQuotaRejection records an upload refused for lack of quota.
func RecordQuotaRejection() {
	quotaRejections.Inc()
}

// UpdateStorageUsed updates the storage used gauge.
func UpdateStorageUsed(bytes float64) {
	storageUsed.Set(bytes)
}

// RecordAuthFailure increments the failed auth counter with a reason label.
func RecordAuthFailure(reason string) {
	authFailures.WithLabelValues(reason).Inc()
}
