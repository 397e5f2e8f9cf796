// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rapidaai/gateway/pkg/types"
)

func sampleModels() []types.ModelDescriptor {
	return []types.ModelDescriptor{
		{ID: "gpt-4o", Provider: "openai", Type: types.ModelCompletion, Capabilities: []string{types.CapCompletion, types.CapStreaming}},
		{ID: "gpt-4o-realtime-preview", Provider: "openai", Type: types.ModelCompletion, Capabilities: []string{types.CapCompletion, types.CapRealtime, types.CapAudio}},
		{ID: "text-embedding-3-small", Provider: "openai", Type: types.ModelEmbedding, Capabilities: []string{types.CapEmbedding}},
		{ID: "gemini-1.5-pro", Provider: "gemini", Type: types.ModelCompletion, Capabilities: []string{types.CapCompletion, types.CapMultimodal}},
	}
}

func TestFilterModelsByCapability(t *testing.T) {
	out := filterModels(sampleModels(), types.CapRealtime, "", "", "", "")
	assert.Len(t, out, 1)
	assert.Equal(t, "gpt-4o-realtime-preview", out[0].ID)
}

func TestFilterModelsByType(t *testing.T) {
	out := filterModels(sampleModels(), "", string(types.ModelEmbedding), "", "", "")
	assert.Len(t, out, 1)
	assert.Equal(t, "text-embedding-3-small", out[0].ID)
}

func TestFilterModelsByProvider(t *testing.T) {
	out := filterModels(sampleModels(), "", "", "gemini", "", "")
	assert.Len(t, out, 1)
	assert.Equal(t, "gemini-1.5-pro", out[0].ID)
}

func TestFilterModelsByRealtimeFlag(t *testing.T) {
	out := filterModels(sampleModels(), "", "", "", "true", "")
	assert.Len(t, out, 1)
	assert.Equal(t, "gpt-4o-realtime-preview", out[0].ID)

	out = filterModels(sampleModels(), "", "", "", "false", "")
	assert.Len(t, out, 4, "realtime=false should not filter anything out")
}

func TestFilterModelsBySearchIsCaseInsensitive(t *testing.T) {
	out := filterModels(sampleModels(), "", "", "", "", "GEMINI")
	assert.Len(t, out, 1)
	assert.Equal(t, "gemini-1.5-pro", out[0].ID)
}

func TestFilterModelsWithNoFiltersReturnsAll(t *testing.T) {
	out := filterModels(sampleModels(), "", "", "", "", "")
	assert.Len(t, out, 4)
}

func TestFilterModelsCombinesFilters(t *testing.T) {
	out := filterModels(sampleModels(), types.CapCompletion, "", "openai", "", "gpt")
	assert.Len(t, out, 2)
}
