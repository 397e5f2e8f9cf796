// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestToOpenAIManualDisablesProviderVAD(t *testing.T) {
	assert.Nil(t, ToOpenAI(Config{Type: Manual}))
}

func TestToOpenAIAppliesDefaults(t *testing.T) {
	frame := ToOpenAI(Config{Type: ServerVAD})
	assert.Equal(t, defaultSilenceDurationMs, frame.SilenceDurationMs)
	assert.Equal(t, defaultPrefixPaddingMs, frame.PrefixPaddingMs)
}

func TestToGeminiManualDisablesActivityDetection(t *testing.T) {
	frame := ToGemini(Config{Type: Manual})
	assert.True(t, frame.AutomaticActivityDetection.Disabled)
}

func TestGeminiSensitivityDefaultsToMedium(t *testing.T) {
	frame := ToGemini(Config{Type: ServerVAD, StartSensitivity: "unknown"})
	assert.Equal(t, "START_SENSITIVITY_MEDIUM", frame.AutomaticActivityDetection.StartOfSpeechSensitivity)
}

func TestGeminiSensitivityHighAndLow(t *testing.T) {
	frame := ToGemini(Config{Type: ServerVAD, StartSensitivity: "high", EndSensitivity: "low"})
	assert.Equal(t, "START_SENSITIVITY_HIGH", frame.AutomaticActivityDetection.StartOfSpeechSensitivity)
	assert.Equal(t, "END_SENSITIVITY_LOW", frame.AutomaticActivityDetection.EndOfSpeechSensitivity)
}

// TestOpenAIRoundTripPreservesTypeAndTimings checks the structural law of
// spec.md §8: ToOpenAI then FromOpenAI preserves type, silence_duration_ms,
// and prefix_padding_ms for any server-VAD config with positive timings.
func TestOpenAIRoundTripPreservesTypeAndTimings(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := Config{
			Type:              ServerVAD,
			SilenceDurationMs: rapid.IntRange(1, 5000).Draw(rt, "silence"),
			PrefixPaddingMs:   rapid.IntRange(1, 5000).Draw(rt, "prefix"),
		}
		got := FromOpenAI(ToOpenAI(cfg))
		assert.Equal(t, cfg.Type, got.Type)
		assert.Equal(t, cfg.SilenceDurationMs, got.SilenceDurationMs)
		assert.Equal(t, cfg.PrefixPaddingMs, got.PrefixPaddingMs)
	})
}

func TestOpenAIRoundTripManual(t *testing.T) {
	got := FromOpenAI(ToOpenAI(Config{Type: Manual}))
	assert.Equal(t, Manual, got.Type)
}

func TestGeminiRoundTripPreservesTypeAndTimings(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := Config{
			Type:              ServerVAD,
			SilenceDurationMs: rapid.IntRange(1, 5000).Draw(rt, "silence"),
			PrefixPaddingMs:   rapid.IntRange(1, 5000).Draw(rt, "prefix"),
		}
		got := FromGemini(ToGemini(cfg))
		assert.Equal(t, cfg.Type, got.Type)
		assert.Equal(t, cfg.SilenceDurationMs, got.SilenceDurationMs)
		assert.Equal(t, cfg.PrefixPaddingMs, got.PrefixPaddingMs)
	})
}

func TestGeminiRoundTripManual(t *testing.T) {
	got := FromGemini(ToGemini(Config{Type: Manual}))
	assert.Equal(t, Manual, got.Type)
}
