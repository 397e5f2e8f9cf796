// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package breaker

import (
	"sync"

	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/commons/metrics"
)

// Limiter enforces 0 <= current <= max in-flight requests per provider
// (spec.md §3 ConcurrencyLimit, §8 invariant 3).
type Limiter struct {
	name string
	max  int

	mu      sync.Mutex
	current int
}

// NewLimiter constructs a Limiter capped at max in-flight requests.
func NewLimiter(name string, max int) *Limiter {
	if max <= 0 {
		max = 64
	}
	return &Limiter{name: name, max: max}
}

// TryAcquire admits one request if current < max, returning a release
// function to call on completion. Returns false when saturated.
func (l *Limiter) TryAcquire() (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current >= l.max {
		return nil, false
	}
	l.current++
	metrics.ConcurrencyInFlight.WithLabelValues(l.name).Set(float64(l.current))
	return l.release, true
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current > 0 {
		l.current--
	}
	metrics.ConcurrencyInFlight.WithLabelValues(l.name).Set(float64(l.current))
}

// Current returns the in-flight count.
func (l *Limiter) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Max returns the configured cap.
func (l *Limiter) Max() int { return l.max }

// AdmissionRequest is one waiter in the bounded FIFO admission queue. Done
// closes when the scheduler drains it.
type AdmissionRequest struct {
	done chan struct{}
}

// Done returns the channel that closes when this waiter is drained.
func (req *AdmissionRequest) Done() <-chan struct{} { return req.done }

// AdmissionQueue is the bounded FIFO of spec.md §4.3 "Queueing": when all
// eligible providers are at concurrency cap, requests wait here instead
// of being admitted immediately. Overflow is rejected with
// SERVICE_UNAVAILABLE.
type AdmissionQueue struct {
	name string
	max  int

	mu      sync.Mutex
	waiting []*AdmissionRequest
}

// NewAdmissionQueue constructs a bounded queue (spec.md default 10000).
func NewAdmissionQueue(name string, max int) *AdmissionQueue {
	if max <= 0 {
		max = 10000
	}
	return &AdmissionQueue{name: name, max: max}
}

// Enqueue adds a waiter, returning an error if the queue is full.
func (q *AdmissionQueue) Enqueue() (*AdmissionRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) >= q.max {
		return nil, commons.NewError(commons.ErrServiceUnavailable, "admission queue full for provider "+q.name).
			WithProvider(q.name)
	}
	req := &AdmissionRequest{done: make(chan struct{})}
	q.waiting = append(q.waiting, req)
	metrics.ConcurrencyQueueDepth.WithLabelValues(q.name).Set(float64(len(q.waiting)))
	return req, nil
}

// DrainOne releases the oldest waiter, called when capacity frees
// (spec.md "A background scheduler drains the queue in batches").
func (q *AdmissionQueue) DrainOne() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return false
	}
	req := q.waiting[0]
	q.waiting = q.waiting[1:]
	close(req.done)
	metrics.ConcurrencyQueueDepth.WithLabelValues(q.name).Set(float64(len(q.waiting)))
	return true
}

// Len returns the current queue depth.
func (q *AdmissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}
