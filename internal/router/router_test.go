// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/gateway/internal/adapter"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/pkg/types"
)

// fakeAdapter implements adapter.Adapter with just enough behavior for
// router strategy tests: a fixed cost and a fixed metrics snapshot.
type fakeAdapter struct {
	name    string
	cost    *types.Cost
	metrics adapter.Metrics
}

func (f *fakeAdapter) Name() string                         { return f.name }
func (f *fakeAdapter) Initialize(ctx context.Context) error  { return nil }
func (f *fakeAdapter) Destroy(ctx context.Context) error     { return nil }
func (f *fakeAdapter) HealthCheck(ctx context.Context) (types.HealthStatus, error) {
	return types.HealthStatus{Status: "healthy"}, nil
}
func (f *fakeAdapter) ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error) {
	return types.ChatCompletionResponse{}, nil
}
func (f *fakeAdapter) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (<-chan adapter.ChatStreamChunk, error) {
	return nil, nil
}
func (f *fakeAdapter) CreateEmbedding(ctx context.Context, req types.EmbeddingRequest) (types.EmbeddingResponse, error) {
	return types.EmbeddingResponse{}, nil
}
func (f *fakeAdapter) TranscribeAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	return types.TranscriptionResponse{}, nil
}
func (f *fakeAdapter) TranslateAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	return types.TranscriptionResponse{}, nil
}
func (f *fakeAdapter) GenerateSpeech(ctx context.Context, req types.SpeechRequest) (types.SpeechResponse, error) {
	return types.SpeechResponse{}, nil
}
func (f *fakeAdapter) ListSupportedModels(ctx context.Context) ([]types.ModelDescriptor, error) {
	return nil, nil
}
func (f *fakeAdapter) GetCostInfo(modelID string) (*types.Cost, bool) {
	if f.cost == nil {
		return nil, false
	}
	return f.cost, true
}
func (f *fakeAdapter) GetMetrics() adapter.Metrics { return f.metrics }

func TestSelectEmptyCandidatesReturnsModelNotFound(t *testing.T) {
	r := New(Config{})
	_, err := r.Select(nil, Criteria{Model: "gpt-4o", Strategy: CostOptimized})
	require.Error(t, err)
	assert.True(t, commons.IsCode(err, commons.ErrModelNotFound))
}

func TestSelectCostOptimizedPicksCheapest(t *testing.T) {
	r := New(Config{CacheTTL: -1})
	candidates := []Candidate{
		{Name: "expensive", Adapter: &fakeAdapter{name: "expensive", cost: &types.Cost{InputCost: 10, OutputCost: 10}}},
		{Name: "cheap", Adapter: &fakeAdapter{name: "cheap", cost: &types.Cost{InputCost: 1, OutputCost: 1}}},
	}
	chosen, err := r.Select(candidates, Criteria{Model: "m", Strategy: CostOptimized})
	require.NoError(t, err)
	assert.Equal(t, "cheap", chosen.Name)
}

func TestSelectCostOptimizedFallsBackToRoundRobinWhenCostUnknown(t *testing.T) {
	r := New(Config{CacheTTL: -1})
	candidates := []Candidate{
		{Name: "a", Adapter: &fakeAdapter{name: "a"}},
		{Name: "b", Adapter: &fakeAdapter{name: "b"}},
	}
	first, err := r.Select(candidates, Criteria{Model: "m", Strategy: CostOptimized})
	require.NoError(t, err)
	second, err := r.Select(candidates, Criteria{Model: "m", Strategy: CostOptimized})
	require.NoError(t, err)
	assert.NotEqual(t, first.Name, second.Name, "round-robin fallback should alternate")
}

func TestSelectPerformancePicksFastestSuccessWeighted(t *testing.T) {
	r := New(Config{CacheTTL: -1})
	candidates := []Candidate{
		{Name: "slow", Adapter: &fakeAdapter{name: "slow", metrics: adapter.Metrics{TotalRequests: 10, SuccessfulRequests: 10, AvgResponseTime: 500 * time.Millisecond}}},
		{Name: "fast", Adapter: &fakeAdapter{name: "fast", metrics: adapter.Metrics{TotalRequests: 10, SuccessfulRequests: 10, AvgResponseTime: 50 * time.Millisecond}}},
	}
	chosen, err := r.Select(candidates, Criteria{Model: "m", Strategy: Performance})
	require.NoError(t, err)
	assert.Equal(t, "fast", chosen.Name)
}

func TestSelectHealthBasedPrefersHealthyOverDegraded(t *testing.T) {
	r := New(Config{CacheTTL: -1})
	candidates := []Candidate{
		{Name: "degraded", Adapter: &fakeAdapter{name: "degraded"}, HealthStatus: Degraded},
		{Name: "healthy", Adapter: &fakeAdapter{name: "healthy"}, HealthStatus: Healthy},
	}
	chosen, err := r.Select(candidates, Criteria{Model: "m", Strategy: HealthBased})
	require.NoError(t, err)
	assert.Equal(t, "healthy", chosen.Name)
}

func TestSelectRoundRobinAlternates(t *testing.T) {
	r := New(Config{CacheTTL: -1})
	candidates := []Candidate{
		{Name: "a", Adapter: &fakeAdapter{name: "a"}},
		{Name: "b", Adapter: &fakeAdapter{name: "b"}},
	}
	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		chosen, err := r.Select(candidates, Criteria{Model: "m", Strategy: RoundRobin})
		require.NoError(t, err)
		seen[chosen.Name]++
	}
	assert.Equal(t, 2, seen["a"])
	assert.Equal(t, 2, seen["b"])
}

func TestSelectCachesWithinTTL(t *testing.T) {
	r := New(Config{CacheTTL: time.Minute})
	candidates := []Candidate{
		{Name: "a", Adapter: &fakeAdapter{name: "a"}},
		{Name: "b", Adapter: &fakeAdapter{name: "b"}},
	}
	first, err := r.Select(candidates, Criteria{Model: "m", Strategy: CostOptimized})
	require.NoError(t, err)
	second, err := r.Select(candidates, Criteria{Model: "m", Strategy: CostOptimized})
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name, "a cached selection should repeat within TTL")
}
