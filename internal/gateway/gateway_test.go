// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package gateway

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/gateway/internal/adapter"
	"github.com/rapidaai/gateway/internal/breaker"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/registry"
	"github.com/rapidaai/gateway/internal/router"
	"github.com/rapidaai/gateway/pkg/types"
)

// scriptedAdapter implements adapter.Adapter and replays a fixed sequence
// of ChatCompletion errors (nil meaning success), counting invocations.
type scriptedAdapter struct {
	name    string
	models  []types.ModelDescriptor
	script  []error
	calls   int32
}

func (s *scriptedAdapter) Name() string                        { return s.name }
func (s *scriptedAdapter) Initialize(ctx context.Context) error { return nil }
func (s *scriptedAdapter) Destroy(ctx context.Context) error    { return nil }
func (s *scriptedAdapter) HealthCheck(ctx context.Context) (types.HealthStatus, error) {
	return types.HealthStatus{Status: "healthy"}, nil
}
func (s *scriptedAdapter) ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error) {
	i := atomic.AddInt32(&s.calls, 1) - 1
	if int(i) < len(s.script) && s.script[i] != nil {
		return types.ChatCompletionResponse{}, s.script[i]
	}
	return types.ChatCompletionResponse{ID: "resp-ok", Model: req.Model}, nil
}
func (s *scriptedAdapter) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (<-chan adapter.ChatStreamChunk, error) {
	return nil, nil
}
func (s *scriptedAdapter) CreateEmbedding(ctx context.Context, req types.EmbeddingRequest) (types.EmbeddingResponse, error) {
	return types.EmbeddingResponse{}, nil
}
func (s *scriptedAdapter) TranscribeAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	return types.TranscriptionResponse{}, nil
}
func (s *scriptedAdapter) TranslateAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	return types.TranscriptionResponse{}, nil
}
func (s *scriptedAdapter) GenerateSpeech(ctx context.Context, req types.SpeechRequest) (types.SpeechResponse, error) {
	return types.SpeechResponse{}, nil
}
func (s *scriptedAdapter) ListSupportedModels(ctx context.Context) ([]types.ModelDescriptor, error) {
	return s.models, nil
}
func (s *scriptedAdapter) GetCostInfo(modelID string) (*types.Cost, bool) { return nil, false }
func (s *scriptedAdapter) GetMetrics() adapter.Metrics                    { return adapter.Metrics{} }

func newTestGateway(t *testing.T, a *scriptedAdapter, cfg Config) *Gateway {
	t.Helper()
	reg := registry.New(commons.NewNop(), registry.Config{HealthCheckInterval: time.Hour, HealthCheckTimeout: time.Second})
	require.NoError(t, reg.Register(a.name, a))
	summary := reg.InitializeAll(context.Background())
	require.Equal(t, 1, summary.Successful)

	rt := router.New(router.Config{CacheTTL: -1})
	return New(commons.NewNop(), reg, rt, cfg)
}

func TestChatCompletionRejectsInvalidRequest(t *testing.T) {
	a := &scriptedAdapter{name: "openai", models: []types.ModelDescriptor{{ID: "gpt-4o", Provider: "openai"}}}
	g := newTestGateway(t, a, Config{})

	_, err := g.ChatCompletion(context.Background(), types.ChatCompletionRequest{})
	require.Error(t, err)
	assert.True(t, commons.IsCode(err, commons.ErrValidation))
	assert.Zero(t, a.calls)
}

func TestChatCompletionUnknownModelReturnsModelNotFound(t *testing.T) {
	a := &scriptedAdapter{name: "openai", models: []types.ModelDescriptor{{ID: "gpt-4o", Provider: "openai"}}}
	g := newTestGateway(t, a, Config{})

	req := types.ChatCompletionRequest{Model: "not-a-model", Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}}
	_, err := g.ChatCompletion(context.Background(), req)
	require.Error(t, err)
	assert.True(t, commons.IsCode(err, commons.ErrModelNotFound))
}

func TestChatCompletionSucceedsOnFirstTry(t *testing.T) {
	a := &scriptedAdapter{name: "openai", models: []types.ModelDescriptor{{ID: "gpt-4o", Provider: "openai"}}}
	g := newTestGateway(t, a, Config{})

	req := types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}}
	resp, err := g.ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "resp-ok", resp.ID)
	assert.EqualValues(t, 1, a.calls)
}

func TestChatCompletionRetriesOnTransientThenSucceeds(t *testing.T) {
	a := &scriptedAdapter{
		name:   "openai",
		models: []types.ModelDescriptor{{ID: "gpt-4o", Provider: "openai"}},
		script: []error{commons.NewError(commons.ErrProviderTransient, "upstream hiccup"), nil},
	}
	g := newTestGateway(t, a, Config{Retry: RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}})

	req := types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}}
	resp, err := g.ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "resp-ok", resp.ID)
	assert.EqualValues(t, 2, a.calls)
}

func TestChatCompletionDoesNotRetryClientFault(t *testing.T) {
	a := &scriptedAdapter{
		name:   "openai",
		models: []types.ModelDescriptor{{ID: "gpt-4o", Provider: "openai"}},
		script: []error{commons.NewError(commons.ErrValidation, "bad request")},
	}
	g := newTestGateway(t, a, Config{Retry: RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}})

	req := types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}}
	_, err := g.ChatCompletion(context.Background(), req)
	require.Error(t, err)
	assert.EqualValues(t, 1, a.calls, "client-fault errors must not be retried")
}

func TestChatCompletionExhaustsRetriesAndTripsBreaker(t *testing.T) {
	transient := commons.NewError(commons.ErrProviderTransient, "still down")
	a := &scriptedAdapter{
		name:   "openai",
		models: []types.ModelDescriptor{{ID: "gpt-4o", Provider: "openai"}},
		script: []error{transient, transient, transient},
	}
	g := newTestGateway(t, a, Config{
		Retry:         RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		BreakerConfig: breaker.Config{FailureThreshold: 3, Timeout: time.Minute},
	})

	req := types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}}
	_, err := g.ChatCompletion(context.Background(), req)
	require.Error(t, err)
	assert.EqualValues(t, 3, a.calls)

	b := g.breakerFor("openai")
	assert.Equal(t, breaker.Open, b.State())
}

func TestChatCompletionAdmitsLoneProviderViaForcedHalfOpen(t *testing.T) {
	a := &scriptedAdapter{name: "openai", models: []types.ModelDescriptor{{ID: "gpt-4o", Provider: "openai"}}}
	g := newTestGateway(t, a, Config{BreakerConfig: breaker.Config{FailureThreshold: 1, Timeout: time.Hour}})

	b := g.breakerFor("openai")
	b.RecordFailure()
	require.Equal(t, breaker.Open, b.State())

	req := types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}}
	resp, err := g.ChatCompletion(context.Background(), req)
	require.NoError(t, err, "forced half-open admits the lone provider serving this model")
	assert.Equal(t, "resp-ok", resp.ID)
}
