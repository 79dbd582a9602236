// prometheus.go - Prometheus text exposition of the server counters
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PrometheusExporter converts internal metrics to Prometheus format
type PrometheusExporter struct {
	metrics *Metrics
	build   BuildInfo
	started time.Time
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter(m *Metrics, build BuildInfo, started time.Time) *PrometheusExporter {
	return &PrometheusExporter{metrics: m, build: build, started: started}
}

func writeMetric(b *strings.Builder, name, kind, help string, value any) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(b, "%s %v\n\n", name, value)
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := p.metrics.Snapshot()

		var output strings.Builder

		output.WriteString("# HELP fs_info Application version info\n")
		output.WriteString("# TYPE fs_info gauge\n")
		fmt.Fprintf(&output, "fs_info{version=\"%s\",commit=\"%s\"} 1\n\n",
			prometheusLabel(p.build.Version), prometheusLabel(p.build.Commit))

		writeMetric(&output, "fs_requests_total", "counter", "Total number of HTTP requests", snapshot.RequestsTotal)

		output.WriteString("# HELP fs_request_errors_total HTTP responses by error class\n")
		output.WriteString("# TYPE fs_request_errors_total counter\n")
		fmt.Fprintf(&output, "fs_request_errors_total{class=\"4xx\"} %d\n", snapshot.RequestErrors4xx)
		fmt.Fprintf(&output, "fs_request_errors_total{class=\"5xx\"} %d\n\n", snapshot.RequestErrors5xx)

		writeMetric(&output, "fs_downloads_total", "counter", "Total number of files served", snapshot.DownloadsTotal)
		writeMetric(&output, "fs_download_bytes_total", "counter", "Total bytes of file content written", snapshot.DownloadBytesTotal)
		writeMetric(&output, "fs_download_not_found_total", "counter", "File requests that resolved to nothing", snapshot.DownloadNotFoundTotal)
		writeMetric(&output, "fs_download_errors_total", "counter", "File requests that failed in storage", snapshot.DownloadErrorsTotal)
		writeMetric(&output, "fs_greetings_total", "counter", "Hits on the greeting page", snapshot.GreetingsTotal)
		writeMetric(&output, "fs_uptime_seconds", "counter", "Application uptime in seconds",
			fmt.Sprintf("%.0f", time.Since(p.started).Seconds()))

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(output.String()))
	}
}

// prometheusLabel escapes a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
