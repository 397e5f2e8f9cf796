// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateDisabledAllowsAll(t *testing.T) {
	g := NewGate("x-api-key", "", false)
	assert.True(t, g.Allow("", ""))
}

func TestGateRequiresMatch(t *testing.T) {
	g := NewGate("x-api-key", "secret", true)
	assert.False(t, g.Allow("", ""))
	assert.True(t, g.Allow("Bearer secret", ""))
	assert.True(t, g.Allow("", "secret"))
	assert.False(t, g.Allow("Bearer wrong", "wrong"))
}

func TestGateRequiredWithoutKeyRejectsAll(t *testing.T) {
	g := NewGate("x-api-key", "", true)
	assert.False(t, g.Allow("Bearer anything", "anything"))
}

func TestMinterRoundTrip(t *testing.T) {
	m := NewMinter("test-secret", time.Minute)
	token, expires, err := m.Mint("gpt-4o-realtime", "openai")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-realtime", claims.Model)
	assert.Equal(t, "openai", claims.Provider)
}

func TestMinterRejectsExpired(t *testing.T) {
	m := &Minter{secret: []byte("test-secret"), ttl: -time.Second}
	token, _, err := m.Mint("gpt-4o-realtime", "openai")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.Error(t, err)
}

func TestMinterRejectsWrongSecret(t *testing.T) {
	m1 := NewMinter("secret-one", time.Minute)
	m2 := NewMinter("secret-two", time.Minute)
	token, _, err := m1.Mint("model", "openai")
	require.NoError(t, err)

	_, err = m2.Verify(token)
	assert.Error(t, err)
}
