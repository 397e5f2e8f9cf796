// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package gateway implements the orchestrator of spec.md §4.5, C5: the
// single per-request entrypoint that resolves a model, admits the call
// through the breaker/limiter, delegates selection to the router, and
// retries the selected provider on transient failure. Each model resolves
// to a single provider, so a failed call does not fail over to another
// provider.
package gateway

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rapidaai/gateway/internal/adapter"
	"github.com/rapidaai/gateway/internal/breaker"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/commons/metrics"
	"github.com/rapidaai/gateway/internal/commons/telemetry"
	"github.com/rapidaai/gateway/internal/registry"
	"github.com/rapidaai/gateway/internal/router"
	"github.com/rapidaai/gateway/pkg/types"
)

// RetryConfig tunes the orchestrator's retry-with-backoff loop (spec.md
// §4.5 step 5).
type RetryConfig struct {
	MaxRetries int           // default 3
	BaseDelay  time.Duration // default 1s
	MaxDelay   time.Duration // default 10s
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	return c
}

// Config wires the orchestrator's dependencies and tunables.
type Config struct {
	Retry          RetryConfig
	BreakerConfig  breaker.Config
	MaxConcurrency int
	QueueSize      int
	Strategy       router.Strategy
}

// Gateway is the explicit, threaded-through application value replacing
// the reference system's module-level singletons (spec.md §9
// "Singleton services").
type Gateway struct {
	logger commons.Logger
	reg    *registry.Registry
	rt     *router.Router
	cfg    Config

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
	limiters map[string]*breaker.Limiter
	queues   map[string]*breaker.AdmissionQueue
}

// New constructs a Gateway over an already-populated registry.
func New(logger commons.Logger, reg *registry.Registry, rt *router.Router, cfg Config) *Gateway {
	cfg.Retry = cfg.Retry.withDefaults()
	return &Gateway{
		logger:   logger,
		reg:      reg,
		rt:       rt,
		cfg:      cfg,
		breakers: make(map[string]*breaker.Breaker),
		limiters: make(map[string]*breaker.Limiter),
		queues:   make(map[string]*breaker.AdmissionQueue),
	}
}

func (g *Gateway) breakerFor(name string) *breaker.Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[name]
	if !ok {
		b = breaker.New(name, g.cfg.BreakerConfig)
		g.breakers[name] = b
	}
	return b
}

func (g *Gateway) limiterFor(name string) *breaker.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[name]
	if !ok {
		l = breaker.NewLimiter(name, g.cfg.MaxConcurrency)
		g.limiters[name] = l
	}
	return l
}

func (g *Gateway) queueFor(name string) *breaker.AdmissionQueue {
	g.mu.Lock()
	defer g.mu.Unlock()
	q, ok := g.queues[name]
	if !ok {
		q = breaker.NewAdmissionQueue(name, g.cfg.QueueSize)
		g.queues[name] = q
	}
	return q
}

// eligible builds the router.Candidate set for model: providers serving
// it whose breaker is not OPEN (spec.md §4.5 step 3).
func (g *Gateway) eligible(model string) ([]router.Candidate, error) {
	a, ok := g.reg.GetProviderForModel(model)
	if !ok {
		return nil, commons.NewError(commons.ErrModelNotFound, "unknown model "+model)
	}
	rec, _ := g.reg.Get(a.Name())

	b := g.breakerFor(a.Name())
	if b.State() == breaker.Open {
		return g.forceAdmitOrEmpty(model, a, rec)
	}

	status := router.Unknown
	if rec != nil {
		status = router.HealthStatus(rec.HealthStatus)
	}
	return []router.Candidate{{Name: a.Name(), Adapter: a, HealthStatus: status}}, nil
}

// forceAdmitOrEmpty implements spec.md §4.3's last-resort admission: if
// every provider serving the model is OPEN, force the oldest-tripped
// breaker to HALF_OPEN to probe recovery. With exactly one provider per
// model (the repo's current state per spec.md §4.5 step 6), this always
// forces that single breaker to HALF_OPEN and returns its provider as the
// only candidate.
func (g *Gateway) forceAdmitOrEmpty(model string, a adapter.Adapter, rec *registry.Record) ([]router.Candidate, error) {
	b := g.breakerFor(a.Name())
	b.ForceHalfOpen()
	status := router.Unknown
	if rec != nil {
		status = router.HealthStatus(rec.HealthStatus)
	}
	return []router.Candidate{{Name: a.Name(), Adapter: a, HealthStatus: status}}, nil
}

// admit blocks until a concurrency slot is free for provider name, either
// immediately or after waiting in the bounded admission queue (spec.md
// §4.3 Queueing).
func (g *Gateway) admit(ctx context.Context, name string) (release func(), err error) {
	limiter := g.limiterFor(name)
	if release, ok := limiter.TryAcquire(); ok {
		return release, nil
	}

	queue := g.queueFor(name)
	req, err := queue.Enqueue()
	if err != nil {
		return nil, err
	}

	select {
	case <-req.Done():
		if release, ok := limiter.TryAcquire(); ok {
			return release, nil
		}
		return nil, commons.NewError(commons.ErrServiceUnavailable, "no capacity after admission for provider "+name).WithProvider(name)
	case <-ctx.Done():
		return nil, commons.Wrap(commons.ErrRequestTimeout, "request cancelled while queued", ctx.Err()).WithProvider(name)
	}
}

// releaseAndDrain frees the concurrency slot then drains one waiter from
// the admission queue, if any (spec.md "background scheduler drains the
// queue in batches when capacity frees").
func (g *Gateway) releaseAndDrain(name string, release func()) {
	release()
	g.queueFor(name).DrainOne()
}

// invoke executes fn under retry-with-backoff per spec.md §4.5 step 5.
func (g *Gateway) invoke(ctx context.Context, operation string, candidate router.Candidate, fn func(context.Context, adapter.Adapter) error) error {
	b := g.breakerFor(candidate.Name)
	cfg := g.cfg.Retry

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		release, err := g.admit(ctx, candidate.Name)
		if err != nil {
			return err
		}

		start := time.Now()
		callErr := fn(ctx, candidate.Adapter)
		g.releaseAndDrain(candidate.Name, release)
		latency := time.Since(start)

		if callErr == nil {
			b.RecordSuccess()
			metrics.ObserveRequest(operation, candidate.Name, "", "success", latency)
			return nil
		}

		lastErr = callErr
		ge, _ := callErr.(*commons.GatewayError)
		metrics.ObserveRequest(operation, candidate.Name, "", "failure", latency)

		if ge == nil || !ge.Retryable() {
			// S4: 4xx auth/validation/not-found failures do not trip the
			// breaker — they indicate a bad request, not provider health.
			if !isClientFault(ge) {
				b.RecordFailure()
			}
			return callErr
		}

		b.RecordFailure()
		if attempt == cfg.MaxRetries {
			break
		}

		delay := time.Duration(math.Min(
			float64(cfg.BaseDelay)*math.Pow(2, float64(attempt-1)),
			float64(cfg.MaxDelay),
		))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return commons.Wrap(commons.ErrRequestTimeout, "request cancelled during backoff", ctx.Err())
		}
	}
	return lastErr
}

// isClientFault reports whether a GatewayError represents a malformed
// request rather than a provider health problem (spec.md §7, scenario S4).
func isClientFault(ge *commons.GatewayError) bool {
	if ge == nil {
		return false
	}
	switch ge.Code {
	case commons.ErrAuthentication, commons.ErrAuthorization, commons.ErrValidation, commons.ErrModelNotFound:
		return true
	default:
		return false
	}
}

// ChatCompletion is the orchestrator entrypoint for non-streaming chat
// (spec.md §4.5).
func (g *Gateway) ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error) {
	ctx, span, _ := telemetry.StartSpan(ctx, "gateway.chat_completion")
	defer span.EndSpan(ctx, "gateway.chat_completion")

	if err := adapter.ValidateChatCompletionRequest(req); err != nil {
		span.RecordError(err)
		return types.ChatCompletionResponse{}, err
	}

	var resp types.ChatCompletionResponse
	err := g.run(ctx, "chat_completion", req.Model, func(ctx context.Context, a adapter.Adapter) error {
		r, err := a.ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return resp, err
}

// CreateEmbedding is the orchestrator entrypoint for embeddings.
func (g *Gateway) CreateEmbedding(ctx context.Context, req types.EmbeddingRequest) (types.EmbeddingResponse, error) {
	ctx, span, _ := telemetry.StartSpan(ctx, "gateway.create_embedding")
	defer span.EndSpan(ctx, "gateway.create_embedding")

	if err := adapter.ValidateEmbeddingRequest(req); err != nil {
		span.RecordError(err)
		return types.EmbeddingResponse{}, err
	}

	var resp types.EmbeddingResponse
	err := g.run(ctx, "create_embedding", req.Model, func(ctx context.Context, a adapter.Adapter) error {
		r, err := a.CreateEmbedding(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// TranscribeAudio is the orchestrator entrypoint for transcription.
func (g *Gateway) TranscribeAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	if err := adapter.ValidateTranscriptionRequest(req); err != nil {
		return types.TranscriptionResponse{}, err
	}
	var resp types.TranscriptionResponse
	err := g.run(ctx, "transcribe_audio", req.Model, func(ctx context.Context, a adapter.Adapter) error {
		r, err := a.TranscribeAudio(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// TranslateAudio is the orchestrator entrypoint for audio translation.
func (g *Gateway) TranslateAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	if err := adapter.ValidateTranscriptionRequest(req); err != nil {
		return types.TranscriptionResponse{}, err
	}
	var resp types.TranscriptionResponse
	err := g.run(ctx, "translate_audio", req.Model, func(ctx context.Context, a adapter.Adapter) error {
		r, err := a.TranslateAudio(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// GenerateSpeech is the orchestrator entrypoint for text-to-speech.
func (g *Gateway) GenerateSpeech(ctx context.Context, req types.SpeechRequest) (types.SpeechResponse, error) {
	if err := adapter.ValidateSpeechRequest(req); err != nil {
		return types.SpeechResponse{}, err
	}
	var resp types.SpeechResponse
	err := g.run(ctx, "generate_speech", req.Model, func(ctx context.Context, a adapter.Adapter) error {
		r, err := a.GenerateSpeech(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// run implements spec.md §4.5 steps 1-7 for any non-streaming operation.
func (g *Gateway) run(ctx context.Context, operation, model string, fn func(context.Context, adapter.Adapter) error) error {
	candidates, err := g.eligible(model)
	if err != nil {
		return err
	}

	chosen, err := g.rt.Select(candidates, router.Criteria{Model: model, Strategy: g.cfg.Strategy})
	if err != nil {
		return err
	}
	metrics.RouterSelectionsTotal.WithLabelValues(string(g.cfg.Strategy), chosen.Name, model).Inc()

	return g.invoke(ctx, operation, chosen, fn)
}

// StreamChatCompletion is the orchestrator entrypoint for streaming chat.
// The orchestrator supervises lifecycle only; per-chunk transformation is
// the adapter's job (spec.md §4.5 "Streaming invocations").
func (g *Gateway) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (<-chan adapter.ChatStreamChunk, error) {
	if err := adapter.ValidateChatCompletionRequest(req); err != nil {
		return nil, err
	}

	candidates, err := g.eligible(req.Model)
	if err != nil {
		return nil, err
	}
	chosen, err := g.rt.Select(candidates, router.Criteria{Model: req.Model, Strategy: g.cfg.Strategy})
	if err != nil {
		return nil, err
	}
	metrics.RouterSelectionsTotal.WithLabelValues(string(g.cfg.Strategy), chosen.Name, req.Model).Inc()

	b := g.breakerFor(chosen.Name)
	if err := b.Allow(); err != nil {
		return nil, err
	}
	release, err := g.admit(ctx, chosen.Name)
	if err != nil {
		return nil, err
	}

	upstream, err := chosen.Adapter.StreamChatCompletion(ctx, req)
	if err != nil {
		g.releaseAndDrain(chosen.Name, release)
		b.RecordFailure()
		return nil, err
	}

	out := make(chan adapter.ChatStreamChunk)
	go func() {
		defer close(out)
		defer g.releaseAndDrain(chosen.Name, release)
		for chunk := range upstream {
			if chunk.Err != nil {
				b.RecordFailure()
			} else if chunk.Chunk.FinishReason != "" {
				b.RecordSuccess()
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Registry exposes the underlying registry for HTTP surface read paths
// (model listing) that do not need orchestration.
func (g *Gateway) Registry() *registry.Registry { return g.reg }
