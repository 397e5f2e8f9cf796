// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package breaker implements the per-provider circuit breaker and
// concurrency limiter of spec.md §4.3, C3.
package breaker

import (
	"sync"
	"time"

	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/commons/metrics"
)

// State is the circuit breaker state machine of spec.md §4.3.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) metricsState() metrics.CircuitState {
	switch s {
	case Open:
		return metrics.CircuitOpen
	case HalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// Config tunes one breaker instance (spec.md §3 CircuitBreakerState).
type Config struct {
	FailureThreshold         int           // default 5
	Timeout                  time.Duration // default 60s
	HalfOpenSuccessThreshold int           // default 3
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.HalfOpenSuccessThreshold <= 0 {
		c.HalfOpenSuccessThreshold = 3
	}
	return c
}

// Breaker is a single provider's circuit breaker, safe for concurrent use.
type Breaker struct {
	name   string
	cfg    Config
	mu     sync.Mutex
	state  State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// New constructs a Breaker in the initial CLOSED state (spec.md §4.3).
func New(name string, cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	b := &Breaker{name: name, cfg: cfg, state: Closed}
	metrics.SetCircuitState(name, Closed.metricsState())
	return b
}

// State returns the current breaker state, transitioning OPEN to
// HALF_OPEN first if the timeout has elapsed (spec.md §4.3 "probe after
// now - lastFailureTime > timeout").
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeProbeLocked()
	return b.state
}

func (b *Breaker) maybeProbeLocked() {
	if b.state == Open && time.Since(b.lastFailureTime) > b.cfg.Timeout {
		b.state = HalfOpen
		b.successCount = 0
		metrics.SetCircuitState(b.name, HalfOpen.metricsState())
	}
}

// Allow reports whether a request may be admitted. OPEN rejects fast
// unless the timeout has just elapsed (handled by State()).
func (b *Breaker) Allow() error {
	if b.State() == Open {
		return commons.NewError(commons.ErrCircuitOpen, "circuit breaker open for provider "+b.name).
			WithProvider(b.name)
	}
	return nil
}

// RecordSuccess applies the CLOSED/HALF_OPEN success transitions of
// spec.md §4.3.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeProbeLocked()

	switch b.state {
	case Closed:
		if b.failureCount > 0 {
			b.failureCount--
		}
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.HalfOpenSuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
			metrics.SetCircuitState(b.name, Closed.metricsState())
		}
	}
}

// RecordFailure applies the CLOSED/HALF_OPEN failure transitions of
// spec.md §4.3.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeProbeLocked()

	b.lastFailureTime = time.Now()
	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = Open
			metrics.CircuitBreakerTripsTotal.WithLabelValues(b.name).Inc()
			metrics.SetCircuitState(b.name, Open.metricsState())
		}
	case HalfOpen:
		b.state = Open
		metrics.CircuitBreakerTripsTotal.WithLabelValues(b.name).Inc()
		metrics.SetCircuitState(b.name, Open.metricsState())
	}
}

// ForceHalfOpen resets the breaker to HALF_OPEN regardless of timeout,
// used by the orchestrator's last-resort admission when every eligible
// provider is blocked (spec.md §4.3).
func (b *Breaker) ForceHalfOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = HalfOpen
	b.successCount = 0
	metrics.SetCircuitState(b.name, HalfOpen.metricsState())
}

// LastFailureTime returns the timestamp of the most recent recorded
// failure, used to pick the oldest-tripped breaker for force-reset.
func (b *Breaker) LastFailureTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailureTime
}

// FailureCount returns the current failure tally, for the monotonicity
// law of spec.md §8 (invariant 2).
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
