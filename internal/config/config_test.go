// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigAndGetApplicationConfigAppliesDefaults(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "llm-gateway", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "x-api-key", cfg.APIKeyHeader)
	assert.Equal(t, "health_based", cfg.Router.Strategy)
	assert.Equal(t, 5*time.Second, cfg.Router.CacheTTL)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Realtime.IdleTimeout)
}

func TestLoadProvidersMissingFileReturnsNil(t *testing.T) {
	providers, err := LoadProviders(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Nil(t, providers)
}

func TestLoadProvidersEmptyPathReturnsNil(t *testing.T) {
	providers, err := LoadProviders("")
	require.NoError(t, err)
	assert.Nil(t, providers)
}

func TestLoadProvidersParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	yamlDoc := []byte(`
providers:
  - name: openai-primary
    kind: openai
    api_key: sk-test
    models: ["gpt-4o"]
    weight: 2
  - name: gemini-primary
    kind: gemini
    api_key: gm-test
    models: ["gemini-1.5-pro"]
`)
	require.NoError(t, os.WriteFile(path, yamlDoc, 0o644))

	providers, err := LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "openai-primary", providers[0].Name)
	assert.Equal(t, "openai", providers[0].Kind)
	assert.Equal(t, []string{"gpt-4o"}, providers[0].Models)
	assert.Equal(t, 2, providers[0].Weight)
	assert.Equal(t, "gemini-primary", providers[1].Name)
}

func TestLoadProvidersRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: [this is not valid"), 0o644))

	_, err := LoadProviders(path)
	assert.Error(t, err)
}
