package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"
)

const greetingHTML = "<h1>Hello, world!</h1>"

// handleGreeting handles GET / with a fixed HTML body.
func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, greetingHTML)
	s.metrics.RecordGreeting()
}

// handleFile handles GET /files/{filename}.
//
// The name is resolved by the configured Store against the base directory.
// Unresolvable names (missing, directories, anything escaping the base) are 404;
// storage failures are 500, or 503 while the storage circuit is open.
// Content is written through http.ServeContent, so conditional and range
// requests work from the file's modification time.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("filename")

	lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
	defer s.recordDownload(r, name, lrw)

	obj, err := s.store.Open(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			s.metrics.RecordDownloadNotFound()
			Debug("file_not_found", map[string]any{
				"file":       name,
				"request_id": RequestIDFromContext(r.Context()),
			})
			http.Error(lrw, "not found", http.StatusNotFound)
		case isUnavailable(err):
			s.metrics.RecordDownloadError()
			http.Error(lrw, "storage unavailable", http.StatusServiceUnavailable)
		default:
			s.metrics.RecordDownloadError()
			Error("file_open_failed", map[string]any{
				"file":       name,
				"store":      s.store.Describe(),
				"request_id": RequestIDFromContext(r.Context()),
			}, err)
			http.Error(lrw, "storage error", http.StatusInternalServerError)
		}
		return
	}
	defer func() { _ = obj.Close() }()

	// ServeContent picks the type from the extension; fall back to what the
	// backend stored when the extension is unknown.
	if mime.TypeByExtension(filepath.Ext(obj.Name)) == "" && obj.ContentType != "" {
		lrw.Header().Set("Content-Type", obj.ContentType)
	}

	http.ServeContent(lrw, r, obj.Name, obj.ModTime, obj.Content)

	if lrw.status < http.StatusMultipleChoices {
		s.metrics.RecordDownload(lrw.size, time.Since(start))
	}
}
