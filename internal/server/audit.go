package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DownloadEvent describes one request to the file route.
type DownloadEvent struct {
	ID        uuid.UUID
	FileName  string
	Status    int
	Bytes     int64
	ClientIP  string
	UserAgent string
	RequestID string
	At        time.Time
}

// DownloadRecorder persists download events.
type DownloadRecorder interface {
	RecordDownload(ctx context.Context, ev DownloadEvent) error
}

// recordDownload hands the finished request to the configured recorder.
// Failures are logged and never affect the response.
func (s *Server) recordDownload(r *http.Request, name string, lrw *loggingResponseWriter) {
	if s.downloads == nil {
		return
	}

	ev := DownloadEvent{
		ID:        uuid.New(),
		FileName:  name,
		Status:    lrw.status,
		Bytes:     lrw.size,
		ClientIP:  clientIP(r, s.trustProxy),
		UserAgent: r.UserAgent(),
		RequestID: RequestIDFromContext(r.Context()),
		At:        time.Now().UTC(),
	}

	// The client may already be gone; the record should still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
	defer cancel()

	if err := s.downloads.RecordDownload(ctx, ev); err != nil {
		Warn("download_record_failed", map[string]any{
			"file":       name,
			"request_id": ev.RequestID,
			"error":      err.Error(),
		})
	}
}
