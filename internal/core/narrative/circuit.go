package narrative

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	errs "github.com/quantfold/themegraph/internal/core/errors"
	"github.com/quantfold/themegraph/internal/platform/observability"
)

// Circuit breaker defaults: open after five consecutive failures, retry
// after a minute.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = time.Minute
)

// CircuitBreaker blocks narrative calls after repeated consecutive failures
// so a dead upstream degrades the learner to rule-based behavior instead of
// stalling every cycle on timeouts.
type CircuitBreaker struct {
	threshold  int
	resetAfter time.Duration

	consecutiveFailures int
	openUntil           time.Time
	mu                  sync.Mutex

	logger zerolog.Logger
}

// NewCircuitBreaker returns a closed breaker. Non-positive arguments select
// the defaults.
func NewCircuitBreaker(threshold int, resetAfter time.Duration, logger zerolog.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}

	if resetAfter <= 0 {
		resetAfter = DefaultBreakerReset
	}

	return &CircuitBreaker{
		threshold:  threshold,
		resetAfter: resetAfter,
		logger:     logger,
	}
}

// Check returns an error while the circuit is open.
func (cb *CircuitBreaker) Check() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if time.Now().Before(cb.openUntil) {
		return fmt.Errorf("%w until %v", errs.ErrCircuitBreakerOpen, cb.openUntil)
	}

	return nil
}

// RecordSuccess resets the consecutive-failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
}

// RecordFailure counts a failed call and opens the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++

	if cb.consecutiveFailures >= cb.threshold {
		cb.openUntil = time.Now().Add(cb.resetAfter)

		observability.NarrativeBreakerOpens.Inc()

		cb.logger.Warn().
			Int("consecutive_failures", cb.consecutiveFailures).
			Time("open_until", cb.openUntil).
			Msg("narrative circuit breaker opened")
	}
}

// IsOpen reports whether the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return time.Now().Before(cb.openUntil)
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.openUntil = time.Time{}
}
