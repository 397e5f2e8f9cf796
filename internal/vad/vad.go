// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package vad translates the gateway's neutral voice-activity-detection
// config into each realtime provider's native shape (spec.md §4.9, C10).
package vad

// Type enumerates the neutral VAD modes a realtime session can request.
type Type string

const (
	ServerVAD Type = "server_vad"
	Manual    Type = "manual"
)

// Config is the neutral VAD shape carried on RealtimeConfig (spec.md §3).
type Config struct {
	Type               Type
	SilenceDurationMs  int
	PrefixPaddingMs    int
	StartSensitivity   string // "high" | "medium" | "low"
	EndSensitivity     string
}

const (
	defaultSilenceDurationMs = 500
	defaultPrefixPaddingMs   = 300
)

// OpenAISessionVAD is the OpenAI-shaped session.update VAD frame. A nil
// value means provider VAD is disabled (manual mode).
type OpenAISessionVAD struct {
	Type              string `json:"type"`
	SilenceDurationMs int    `json:"silence_duration_ms"`
	PrefixPaddingMs   int    `json:"prefix_padding_ms"`
}

// ToOpenAI maps a neutral Config to the OpenAI-shaped frame (spec.md
// §4.9). manual mode returns nil, disabling provider-side VAD.
func ToOpenAI(cfg Config) *OpenAISessionVAD {
	if cfg.Type == Manual {
		return nil
	}
	silence := cfg.SilenceDurationMs
	if silence == 0 {
		silence = defaultSilenceDurationMs
	}
	prefix := cfg.PrefixPaddingMs
	if prefix == 0 {
		prefix = defaultPrefixPaddingMs
	}
	return &OpenAISessionVAD{
		Type:              string(ServerVAD),
		SilenceDurationMs: silence,
		PrefixPaddingMs:   prefix,
	}
}

// GeminiAutomaticActivityDetection is the Gemini-shaped VAD sub-object.
type GeminiAutomaticActivityDetection struct {
	Disabled                bool   `json:"disabled"`
	StartOfSpeechSensitivity string `json:"startOfSpeechSensitivity,omitempty"`
	EndOfSpeechSensitivity   string `json:"endOfSpeechSensitivity,omitempty"`
	PrefixPaddingMs          int    `json:"prefixPaddingMs,omitempty"`
	SilenceDurationMs        int    `json:"silenceDurationMs,omitempty"`
}

// GeminiRealtimeInputConfig wraps the activity-detection object the way
// Gemini's Live API expects it nested.
type GeminiRealtimeInputConfig struct {
	AutomaticActivityDetection GeminiAutomaticActivityDetection `json:"automaticActivityDetection"`
}

// ToGemini maps a neutral Config to the Gemini-shaped frame (spec.md §4.9).
func ToGemini(cfg Config) GeminiRealtimeInputConfig {
	if cfg.Type == Manual {
		return GeminiRealtimeInputConfig{
			AutomaticActivityDetection: GeminiAutomaticActivityDetection{Disabled: true},
		}
	}
	silence := cfg.SilenceDurationMs
	if silence == 0 {
		silence = defaultSilenceDurationMs
	}
	prefix := cfg.PrefixPaddingMs
	if prefix == 0 {
		prefix = defaultPrefixPaddingMs
	}
	return GeminiRealtimeInputConfig{
		AutomaticActivityDetection: GeminiAutomaticActivityDetection{
			Disabled:                 false,
			StartOfSpeechSensitivity: geminiSensitivity("START", cfg.StartSensitivity),
			EndOfSpeechSensitivity:   geminiSensitivity("END", cfg.EndSensitivity),
			PrefixPaddingMs:          prefix,
			SilenceDurationMs:        silence,
		},
	}
}

// geminiSensitivity normalizes a neutral sensitivity string into the
// *_SENSITIVITY_{HIGH|MEDIUM|LOW} vocabulary Gemini expects, defaulting
// to MEDIUM for unrecognized or empty input.
func geminiSensitivity(edge, level string) string {
	switch level {
	case "high":
		return edge + "_SENSITIVITY_HIGH"
	case "low":
		return edge + "_SENSITIVITY_LOW"
	default:
		return edge + "_SENSITIVITY_MEDIUM"
	}
}

// FromOpenAI is the canonical inverse of ToOpenAI, used by the VAD
// round-trip structural law of spec.md §8: mapping to provider form and
// back preserves type, silence_duration_ms, prefix_padding_ms.
func FromOpenAI(frame *OpenAISessionVAD) Config {
	if frame == nil {
		return Config{Type: Manual}
	}
	return Config{
		Type:              ServerVAD,
		SilenceDurationMs: frame.SilenceDurationMs,
		PrefixPaddingMs:   frame.PrefixPaddingMs,
	}
}

// FromGemini is the canonical inverse of ToGemini.
func FromGemini(frame GeminiRealtimeInputConfig) Config {
	aad := frame.AutomaticActivityDetection
	if aad.Disabled {
		return Config{Type: Manual}
	}
	return Config{
		Type:              ServerVAD,
		SilenceDurationMs: aad.SilenceDurationMs,
		PrefixPaddingMs:   aad.PrefixPaddingMs,
	}
}
