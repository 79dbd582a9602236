package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(5, time.Second)
	defer rl.stop()

	// First 5 requests should be allowed
	for i := 0; i < 5; i++ {
		if !rl.allow("192.168.1.1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 6th request should be denied
	if rl.allow("192.168.1.1") {
		t.Error("6th request should be denied")
	}

	// Different IP should be allowed
	if !rl.allow("192.168.1.2") {
		t.Error("Request from different IP should be allowed")
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, 100*time.Millisecond)
	defer rl.stop()

	if !rl.allow("192.168.1.1") {
		t.Error("First request should be allowed")
	}
	if !rl.allow("192.168.1.1") {
		t.Error("Second request should be allowed")
	}
	if rl.allow("192.168.1.1") {
		t.Error("Third request should be denied")
	}

	// Wait for window to pass
	time.Sleep(110 * time.Millisecond)

	if !rl.allow("192.168.1.1") {
		t.Error("Request after window should be allowed")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	defer rl.stop()

	handler := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/files/a.txt", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	// 4th request should be rate limited
	req := httptest.NewRequest("GET", "/files/a.txt", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}

	// Probes are exempt
	probe := httptest.NewRequest("GET", "/ready", nil)
	probe.RemoteAddr = "192.168.1.1:12345"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, probe)
	if w.Code != http.StatusOK {
		t.Errorf("probe: expected 200, got %d", w.Code)
	}
}

func TestServer_RateLimitWired(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	srv := New(Config{Store: store, RateLimit: 2})
	defer srv.limiter.stop()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}
}

func TestServer_RateLimitIgnoresForwardedFor(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	srv := New(Config{Store: store, RateLimit: 1})
	defer srv.limiter.stop()

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", codes[0])
	}
	for i, code := range codes[1:] {
		if code != http.StatusTooManyRequests {
			t.Errorf("request %d with rotated X-Forwarded-For: expected 429, got %d", i+2, code)
		}
	}

	srv.limiter.mu.RLock()
	n := len(srv.limiter.visitors)
	srv.limiter.mu.RUnlock()
	if n != 1 {
		t.Errorf("expected 1 tracked visitor, got %d", n)
	}
}

func TestServer_RateLimitTrustedProxy(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	srv := New(Config{Store: store, RateLimit: 1, TrustProxy: true})
	defer srv.limiter.stop()

	// Behind a proxy every request shares RemoteAddr; clients differ by header.
	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", ip)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", ip, rr.Code)
		}
	}
}

func TestRateLimiter_NoUpfrontAllocation(t *testing.T) {
	rl := newRateLimiter(1_000_000, time.Minute)
	defer rl.stop()

	rl.allow("192.0.2.1")

	rl.mu.RLock()
	v := rl.visitors["192.0.2.1"]
	rl.mu.RUnlock()
	if c := cap(v.requests); c > 16 {
		t.Errorf("visitor reserved capacity %d for a single request", c)
	}
}
