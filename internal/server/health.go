// health.go - /health, /ready and /live.
//
// /health runs every configured check and rolls the results up. A failing
// critical check (storage) makes the report unhealthy and answers 503; a
// failing optional one (the audit database) or a slow answer only degrades it.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Status is the rolled-up /health verdict.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckState is the outcome of one check.
type CheckState string

const (
	CheckUp       CheckState = "up"
	CheckDegraded CheckState = "degraded"
	CheckDown     CheckState = "down"
)

// HealthReport is the /health response body.
type HealthReport struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	CheckedAt time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"components"`
}

// CheckResult is one entry under "components".
type CheckResult struct {
	State     CheckState           `json:"status"`
	Message   string               `json:"message,omitempty"`
	LatencyMs int64                `json:"latency_ms"`
	Breaker   *CircuitBreakerStats `json:"breaker,omitempty"`
}

type healthCheck struct {
	name     string
	critical bool
	slow     time.Duration
	ping     func(context.Context) error
}

func (s *Server) healthChecks() []healthCheck {
	checks := []healthCheck{
		{name: "storage", critical: true, slow: 2 * time.Second, ping: s.store.Ping},
	}
	if s.db != nil {
		checks = append(checks, healthCheck{name: "database", slow: time.Second, ping: s.db.PingContext})
	}
	return checks
}

func runCheck(ctx context.Context, c healthCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := c.ping(ctx)
	took := time.Since(start)

	res := CheckResult{State: CheckUp, LatencyMs: took.Milliseconds()}
	switch {
	case err != nil && c.critical:
		res.State, res.Message = CheckDown, err.Error()
	case err != nil:
		res.State, res.Message = CheckDegraded, err.Error()
	case took > c.slow:
		res.State, res.Message = CheckDegraded, "slow response"
	}
	return res
}

// rollup folds check states into one verdict; any down wins over degraded.
func rollup(checks map[string]CheckResult) Status {
	status := StatusHealthy
	for _, c := range checks {
		switch c.State {
		case CheckDown:
			return StatusUnhealthy
		case CheckDegraded:
			status = StatusDegraded
		}
	}
	return status
}

func (s *Server) healthReport(ctx context.Context) HealthReport {
	report := HealthReport{
		Version:   s.build.Version,
		CheckedAt: time.Now().UTC(),
		Checks:    make(map[string]CheckResult),
	}
	for _, c := range s.healthChecks() {
		report.Checks[c.name] = runCheck(ctx, c)
	}

	if ms, ok := s.store.(*MinioStore); ok {
		stats := ms.Breaker().GetStats()
		storage := report.Checks["storage"]
		storage.Breaker = &stats
		report.Checks["storage"] = storage
	}

	report.Status = rollup(report.Checks)
	return report
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// HandleHealth reports every check. Degraded still answers 200.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthReport(r.Context())

	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

// HandleReady answers 200 only while the store can serve files.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "storage unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleLive answers as long as the process is serving.
func (s *Server) HandleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
