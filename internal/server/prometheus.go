// prometheus.go - Prometheus text exposition of the upload metrics.
package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// PrometheusMetricsHandler serves the counters in the Prometheus text format.
func PrometheusMetricsHandler(build BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := GetMetrics().Snapshot()

		var out strings.Builder

		writeMetric(&out, "admin_info", "Application version info", "gauge")
		fmt.Fprintf(&out, "admin_info{version=\"%s\",commit=\"%s\"} 1\n\n",
			prometheusLabel(build.Version), prometheusLabel(build.Commit))

		counters := []struct {
			name, help string
			value      int64
		}{
			{"admin_requests_total", "Total number of HTTP requests", snapshot.RequestsTotal},
			{"admin_request_errors_4xx_total", "HTTP requests answered with a 4xx status", snapshot.RequestErrors4xx},
			{"admin_request_errors_5xx_total", "HTTP requests answered with a 5xx status", snapshot.RequestErrors5xx},
			{"admin_uploads_created_total", "Multipart upload sessions created", snapshot.UploadsCreated},
			{"admin_uploads_completed_total", "Multipart uploads finalized", snapshot.UploadsCompleted},
			{"admin_uploads_aborted_total", "Multipart uploads aborted", snapshot.UploadsAborted},
			{"admin_upload_completion_failures_total", "Multipart completions rejected by the object store", snapshot.CompletionFailed},
			{"admin_upload_parts_registered_total", "Part ETags registered", snapshot.PartsRegistered},
			{"admin_upload_part_urls_total", "Presigned part URLs issued", snapshot.PartURLsIssued},
			{"admin_upload_bytes_total", "Declared bytes of finalized multipart uploads", snapshot.BytesCompleted},
			{"admin_direct_uploads_total", "Files stored through the single-shot endpoint", snapshot.FilesUploaded},
			{"admin_direct_upload_bytes_total", "Bytes stored through the single-shot endpoint", snapshot.DirectUploadBytes},
			{"admin_files_deleted_total", "Files deleted", snapshot.FilesDeleted},
		}
		for _, c := range counters {
			writeMetric(&out, c.name, c.help, "counter")
			fmt.Fprintf(&out, "%s %d\n\n", c.name, c.value)
		}

		writeMetric(&out, "admin_request_duration_ms", "Request latency percentiles per route", "summary")
		for _, route := range requestRoutes() {
			p50, p95, p99 := GetRequestDurationPercentiles(route)
			label := prometheusLabel(route)
			fmt.Fprintf(&out, "admin_request_duration_ms{route=\"%s\",quantile=\"0.5\"} %.0f\n", label, p50)
			fmt.Fprintf(&out, "admin_request_duration_ms{route=\"%s\",quantile=\"0.95\"} %.0f\n", label, p95)
			fmt.Fprintf(&out, "admin_request_duration_ms{route=\"%s\",quantile=\"0.99\"} %.0f\n", label, p99)
		}
		out.WriteString("\n")

		writeMetric(&out, "admin_uptime_seconds", "Application uptime in seconds", "counter")
		fmt.Fprintf(&out, "admin_uptime_seconds %.0f\n", time.Since(serverStartTime).Seconds())

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out.String()))
	}
}

func writeMetric(out *strings.Builder, name, help, typ string) {
	fmt.Fprintf(out, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
}

func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}

// MetricsSummary keeps recent request durations per route.
type MetricsSummary struct {
	mu               sync.RWMutex
	requestDurations map[string][]float64
}

const durationSamples = 1000

var (
	metricsSummary = &MetricsSummary{
		requestDurations: make(map[string][]float64),
	}
	serverStartTime = time.Now()
)

// RecordRequestDuration keeps the last durationSamples samples per route.
func RecordRequestDuration(route string, durationMs float64) {
	metricsSummary.mu.Lock()
	defer metricsSummary.mu.Unlock()

	durations := append(metricsSummary.requestDurations[route], durationMs)
	if len(durations) > durationSamples {
		durations = durations[len(durations)-durationSamples:]
	}
	metricsSummary.requestDurations[route] = durations
}

// GetRequestDurationPercentiles returns percentile data for request durations
func GetRequestDurationPercentiles(route string) (p50, p95, p99 float64) {
	metricsSummary.mu.RLock()
	defer metricsSummary.mu.RUnlock()

	durations := metricsSummary.requestDurations[route]
	if len(durations) == 0 {
		return 0, 0, 0
	}

	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)

	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[len(sorted)*95/100]
	p99 = sorted[len(sorted)*99/100]
	return
}

func requestRoutes() []string {
	metricsSummary.mu.RLock()
	defer metricsSummary.mu.RUnlock()

	routes := make([]string, 0, len(metricsSummary.requestDurations))
	for r := range metricsSummary.requestDurations {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}
