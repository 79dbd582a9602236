package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultAddr binds every interface on port 5000.
	DefaultAddr = "0.0.0.0:5000"
	// DefaultBaseDir is the directory files are served from when none is configured.
	DefaultBaseDir = "/home/ec2-user"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Config struct {
	Addr  string // e.g. "0.0.0.0:5000"
	Build BuildInfo

	// Store resolves /files/{filename}. Required.
	Store Store

	// Optional download audit. DB is only used for health reporting.
	DB        Pinger
	Downloads DownloadRecorder

	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Leave off unless a proxy in front overwrites those headers.
	TrustProxy bool
}

type Server struct {
	httpServer *http.Server
	build      BuildInfo
	store      Store
	db         Pinger
	downloads  DownloadRecorder
	metrics    *Metrics
	limiter    *rateLimiter
	trustProxy bool
	started    time.Time
}

func New(cfg Config) *Server {
	s := &Server{
		build:      cfg.Build,
		store:      cfg.Store,
		db:         cfg.DB,
		downloads:  cfg.Downloads,
		metrics:    NewMetrics(),
		trustProxy: cfg.TrustProxy,
		started:    time.Now(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleGreeting)
	mux.HandleFunc("GET /files/{filename}", s.handleFile)

	// Probes and metrics
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /ready", s.HandleReady)
	mux.HandleFunc("GET /live", s.HandleLive)
	mux.Handle("GET /metrics", NewPrometheusExporter(s.metrics, s.build, s.started).Handler())

	// Wrap middleware: requestID -> logging -> security -> rate limit -> gzip -> mux
	var handler http.Handler = mux
	handler = CompressionMiddleware(handler)
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, time.Minute)
		s.limiter.trustProxy = cfg.TrustProxy
		handler = s.limiter.middleware(handler)
	}
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start binds the configured address and serves until Shutdown.
// A bind failure (e.g. address in use) is returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	Info("server_listening", map[string]any{
		"addr":  ln.Addr().String(),
		"store": s.store.Describe(),
	})
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}
