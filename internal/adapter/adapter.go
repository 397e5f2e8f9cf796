// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package adapter defines the uniform contract every provider driver
// implements (spec.md §4.1, C1): a runtime-polymorphic interface the
// registry stores by name and the orchestrator dispatches against.
package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/rapidaai/gateway/pkg/types"
)

// ChatStreamChunk is delivered by StreamChatCompletion over a channel;
// Err is non-nil at most once, and only as the final value before the
// channel closes (a successful stream closes without one), matching the "async iterators become channels" guidance of
// spec.md §9.
type ChatStreamChunk struct {
	Chunk types.ChatCompletionChunk
	Err   error
}

// Adapter is the contract every provider driver implements. Dispatch is
// dynamic: the registry holds a map[string]Adapter and never switches on
// concrete type.
type Adapter interface {
	// Name returns the stable provider name this adapter was registered
	// under.
	Name() string

	// Initialize validates configuration, constructs the HTTP/WS client,
	// and runs one health probe. Must be idempotent.
	Initialize(ctx context.Context) error

	// HealthCheck must complete within a bounded wall clock or return a
	// REQUEST_TIMEOUT GatewayError.
	HealthCheck(ctx context.Context) (types.HealthStatus, error)

	ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error)

	// StreamChatCompletion returns a channel of chunks terminating on a
	// chunk carrying FinishStop/FinishLength/FinishContentFilter, or on a
	// chunk carrying a non-nil Err.
	StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (<-chan ChatStreamChunk, error)

	CreateEmbedding(ctx context.Context, req types.EmbeddingRequest) (types.EmbeddingResponse, error)

	TranscribeAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error)
	TranslateAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error)
	GenerateSpeech(ctx context.Context, req types.SpeechRequest) (types.SpeechResponse, error)

	ListSupportedModels(ctx context.Context) ([]types.ModelDescriptor, error)
	GetCostInfo(modelID string) (*types.Cost, bool)
	GetMetrics() Metrics

	// Destroy releases sockets and stops background work. Safe to call
	// more than once.
	Destroy(ctx context.Context) error
}

// Metrics is the per-adapter sliding-window accounting of spec.md §3
// (ProviderMetrics). It is a value snapshot, not a live handle.
type Metrics struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	AvgResponseTime    time.Duration
}

// SuccessRate returns SuccessfulRequests/TotalRequests, floored at 0.1 so
// it never makes a provider's weight collapse to zero (spec.md §4.4: the
// "weighted" strategy multiplies by it and the "performance" strategy
// divides by it).
func (m Metrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 1.0
	}
	rate := float64(m.SuccessfulRequests) / float64(m.TotalRequests)
	if rate < 0.1 {
		return 0.1
	}
	return rate
}

// MetricsRecorder accumulates a bounded sliding window of request outcomes
// and response times, guarded by its own mutex so every adapter can embed
// one instance without reimplementing the windowing logic.
type MetricsRecorder struct {
	window  int
	samples []sample
	mu      sync.Mutex
}

type sample struct {
	success  bool
	duration time.Duration
}

// NewMetricsRecorder builds a recorder retaining at most window samples
// (spec.md §3, default 1000).
func NewMetricsRecorder(window int) *MetricsRecorder {
	if window <= 0 {
		window = 1000
	}
	return &MetricsRecorder{window: window}
}

// Record appends one outcome, trimming the oldest sample when over window.
func (r *MetricsRecorder) Record(success bool, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample{success: success, duration: d})
	if len(r.samples) > r.window {
		r.samples = r.samples[len(r.samples)-r.window:]
	}
}

// Snapshot returns the current Metrics computed over the retained window.
func (r *MetricsRecorder) Snapshot() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	var m Metrics
	m.TotalRequests = int64(len(r.samples))
	var total time.Duration
	for _, s := range r.samples {
		if s.success {
			m.SuccessfulRequests++
		} else {
			m.FailedRequests++
		}
		total += s.duration
	}
	if len(r.samples) > 0 {
		m.AvgResponseTime = total / time.Duration(len(r.samples))
	}
	return m
}
