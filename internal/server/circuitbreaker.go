// circuitbreaker.go - Fail-fast guard around the object store.
//
// maxFailures consecutive errors open the breaker. Calls are then refused
// until the cooldown has passed, after which exactly one trial call decides
// whether it closes again or reopens.
package server

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the breaker position.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

var circuitStateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(circuitStateNames) {
		return "unknown"
	}
	return circuitStateNames[s]
}

var (
	// ErrCircuitOpen means the call was refused without reaching storage.
	ErrCircuitOpen = errors.New("storage circuit open")
	// ErrTooManyRequests means a trial call is already in flight.
	ErrTooManyRequests = errors.New("storage circuit half-open: trial in flight")
)

// CircuitBreakerStats is reported under the storage component of /health.
type CircuitBreakerStats struct {
	State            string    `json:"state"`
	Failures         uint32    `json:"failures"`
	TotalRequests    uint64    `json:"total_requests"`
	FailedRequests   uint64    `json:"failed_requests"`
	RejectedRequests uint64    `json:"rejected_requests"`
	LastFailureTime  time.Time `json:"last_failure_time"`
}

// CircuitBreaker is safe for concurrent use. The lock is never held while
// the guarded call runs.
type CircuitBreaker struct {
	maxFailures uint32
	cooldown    time.Duration
	now         func() time.Time

	mu          sync.Mutex
	state       CircuitState
	consecutive uint32
	lastFailure time.Time
	total       uint64
	failed      uint64
	rejected    uint64
}

// NewCircuitBreaker opens after maxFailures consecutive errors and tries
// again once cooldown has elapsed.
func NewCircuitBreaker(maxFailures uint32, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs fn if the breaker admits it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.settle(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.total++
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.cooldown {
			cb.rejected++
			return ErrCircuitOpen
		}
		// This caller becomes the trial.
		cb.state = StateHalfOpen
		Info("circuit_breaker_half_open", map[string]any{"cooldown": cb.cooldown.String()})
	case StateHalfOpen:
		cb.rejected++
		return ErrTooManyRequests
	}
	return nil
}

func (cb *CircuitBreaker) settle(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == StateHalfOpen {
			Info("circuit_breaker_closed", nil)
		}
		cb.state = StateClosed
		cb.consecutive = 0
		return
	}

	cb.failed++
	cb.consecutive++
	cb.lastFailure = cb.now()
	if cb.state == StateOpen {
		return
	}
	if cb.state == StateHalfOpen || cb.consecutive >= cb.maxFailures {
		cb.state = StateOpen
		Warn("circuit_breaker_opened", map[string]any{
			"consecutive_failures": cb.consecutive,
			"cooldown":             cb.cooldown.String(),
		})
	}
}

// GetState returns the current position.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns a copy of the counters.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state.String(),
		Failures:         cb.consecutive,
		TotalRequests:    cb.total,
		FailedRequests:   cb.failed,
		RejectedRequests: cb.rejected,
		LastFailureTime:  cb.lastFailure,
	}
}
