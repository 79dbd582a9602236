// metrics.go - In-process counters behind /metrics.
package server

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics counts requests, downloads and greetings for one Server.
// All fields are atomics, so recording never blocks a handler.
type Metrics struct {
	downloads        atomic.Int64
	downloadBytes    atomic.Int64
	downloadNanos    atomic.Int64
	downloadNotFound atomic.Int64
	downloadErrors   atomic.Int64

	greetings atomic.Int64

	requests    atomic.Int64
	responses4x atomic.Int64
	responses5x atomic.Int64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordDownload counts a file written to a client.
func (m *Metrics) RecordDownload(bytes int64, took time.Duration) {
	m.downloads.Add(1)
	m.downloadBytes.Add(bytes)
	m.downloadNanos.Add(int64(took))
}

// RecordDownloadNotFound counts a name that resolved to nothing.
func (m *Metrics) RecordDownloadNotFound() { m.downloadNotFound.Add(1) }

// RecordDownloadError counts a storage failure.
func (m *Metrics) RecordDownloadError() { m.downloadErrors.Add(1) }

// RecordGreeting counts a hit on /.
func (m *Metrics) RecordGreeting() { m.greetings.Add(1) }

// RecordRequest counts a finished request by status class.
func (m *Metrics) RecordRequest(status int) {
	m.requests.Add(1)
	switch {
	case status >= http.StatusInternalServerError:
		m.responses5x.Add(1)
	case status >= http.StatusBadRequest:
		m.responses4x.Add(1)
	}
}

// MetricsSnapshot is a copy of the counters at one point in time. Counters
// are read one by one, so a snapshot taken mid-request may be off by one.
type MetricsSnapshot struct {
	DownloadsTotal        int64   `json:"downloads_total"`
	DownloadBytesTotal    int64   `json:"download_bytes_total"`
	DownloadNotFoundTotal int64   `json:"download_not_found_total"`
	DownloadErrorsTotal   int64   `json:"download_errors_total"`
	DownloadAvgDurationMs float64 `json:"download_avg_duration_ms"`
	GreetingsTotal        int64   `json:"greetings_total"`
	RequestsTotal         int64   `json:"requests_total"`
	RequestErrors4xx      int64   `json:"request_errors_4xx"`
	RequestErrors5xx      int64   `json:"request_errors_5xx"`
}

// Snapshot reads every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		DownloadsTotal:        m.downloads.Load(),
		DownloadBytesTotal:    m.downloadBytes.Load(),
		DownloadNotFoundTotal: m.downloadNotFound.Load(),
		DownloadErrorsTotal:   m.downloadErrors.Load(),
		GreetingsTotal:        m.greetings.Load(),
		RequestsTotal:         m.requests.Load(),
		RequestErrors4xx:      m.responses4x.Load(),
		RequestErrors5xx:      m.responses5x.Load(),
	}
	if snap.DownloadsTotal > 0 {
		avg := time.Duration(m.downloadNanos.Load() / snap.DownloadsTotal)
		snap.DownloadAvgDurationMs = float64(avg) / float64(time.Millisecond)
	}
	return snap
}
