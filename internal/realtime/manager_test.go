// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rapidaai/gateway/internal/commons"
)

func noopFactory() UpstreamAdapter { return nil }

func TestResolvePrefersExplicitClientChoice(t *testing.T) {
	m := NewManager(commons.NewNop(), Config{}, map[string]AdapterFactory{
		"openai": noopFactory,
		"gemini": noopFactory,
	}, map[string]string{"gemini-live-2.5-flash": "gemini"}, nil)

	provider, ok := m.Resolve(SessionConfig{Provider: "gemini", Model: "gpt-4o-realtime-preview"})
	assert.True(t, ok)
	assert.Equal(t, "gemini", provider)
}

func TestResolveFallsBackToModelMap(t *testing.T) {
	m := NewManager(commons.NewNop(), Config{}, map[string]AdapterFactory{
		"openai": noopFactory,
		"gemini": noopFactory,
	}, map[string]string{"gemini-live-2.5-flash": "gemini"}, nil)

	provider, ok := m.Resolve(SessionConfig{Model: "gemini-live-2.5-flash"})
	assert.True(t, ok)
	assert.Equal(t, "gemini", provider)
}

func TestResolveFallsBackToPrefixHeuristic(t *testing.T) {
	m := NewManager(commons.NewNop(), Config{}, map[string]AdapterFactory{
		"openai": noopFactory,
	}, map[string]string{}, nil)

	provider, ok := m.Resolve(SessionConfig{Model: "openai-whatever-new-model"})
	assert.True(t, ok)
	assert.Equal(t, "openai", provider)
}

func TestResolveFallsBackToSoleProvider(t *testing.T) {
	m := NewManager(commons.NewNop(), Config{}, map[string]AdapterFactory{
		"gemini": noopFactory,
	}, map[string]string{}, nil)

	provider, ok := m.Resolve(SessionConfig{Model: "totally-unrelated-model"})
	assert.True(t, ok)
	assert.Equal(t, "gemini", provider)
}

func TestResolveFailsWithNoMatchAndMultipleProviders(t *testing.T) {
	m := NewManager(commons.NewNop(), Config{}, map[string]AdapterFactory{
		"openai": noopFactory,
		"gemini": noopFactory,
	}, map[string]string{}, nil)

	_, ok := m.Resolve(SessionConfig{Model: "totally-unrelated-model"})
	assert.False(t, ok)
}

func TestResolveIgnoresUnknownExplicitProvider(t *testing.T) {
	m := NewManager(commons.NewNop(), Config{}, map[string]AdapterFactory{
		"openai": noopFactory,
	}, map[string]string{}, nil)

	provider, ok := m.Resolve(SessionConfig{Provider: "anthropic", Model: "openai-foo"})
	assert.True(t, ok)
	assert.Equal(t, "openai", provider)
}
