// compression.go - gzip for text responses.
//
// File downloads are never compressed: they are streamed as stored so that
// Content-Length and byte ranges stay valid.
package server

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// compressionResponseWriter decides on the first header write whether the
// response is worth compressing, based on its Content-Type.
type compressionResponseWriter struct {
	http.ResponseWriter
	gz      *gzip.Writer
	decided bool
}

func (crw *compressionResponseWriter) decide(status int) {
	if crw.decided {
		return
	}
	crw.decided = true

	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified {
		return
	}
	h := crw.Header()
	if h.Get("Content-Encoding") != "" || !compressibleType(h.Get("Content-Type")) {
		return
	}

	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length") // Length will change with compression
	crw.gz = gzip.NewWriter(crw.ResponseWriter)
}

func (crw *compressionResponseWriter) WriteHeader(code int) {
	crw.decide(code)
	crw.ResponseWriter.WriteHeader(code)
}

func (crw *compressionResponseWriter) Write(b []byte) (int, error) {
	if !crw.decided {
		crw.WriteHeader(http.StatusOK)
	}
	if crw.gz != nil {
		return crw.gz.Write(b)
	}
	return crw.ResponseWriter.Write(b)
}

func (crw *compressionResponseWriter) close() error {
	if crw.gz == nil {
		return nil
	}
	return crw.gz.Close()
}

// CompressionMiddleware returns middleware that compresses HTTP responses.
func CompressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")
		if !acceptsCompression(r) {
			next.ServeHTTP(w, r)
			return
		}

		crw := &compressionResponseWriter{ResponseWriter: w}
		defer func() { _ = crw.close() }()

		next.ServeHTTP(crw, r)
	})
}

// acceptsCompression checks if the client accepts gzip encoding.
func acceptsCompression(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(coding) != "gzip" {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}

// shouldSkipCompression determines if compression should be skipped for this request.
func shouldSkipCompression(r *http.Request) bool {
	if r.Method == http.MethodHead {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/files/")
}

func compressibleType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.HasPrefix(ct, "text/") || strings.HasPrefix(ct, "application/json")
}
