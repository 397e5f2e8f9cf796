// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/gateway/internal/realtime"
)

func TestNormalizeInvalidJSONYieldsNil(t *testing.T) {
	assert.Nil(t, Normalize("openai", []byte("not json")))
}

func TestNormalizeUnknownProviderYieldsNil(t *testing.T) {
	assert.Nil(t, Normalize("anthropic", []byte(`{"type":"x"}`)))
}

func TestNormalizeOpenAITranscriptDelta(t *testing.T) {
	raw := []byte(`{"type":"conversation.item.input_audio_transcription.delta","delta":"hel"}`)
	events := Normalize("openai-realtime", raw)
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventTranscriptDelta, events[0].Type)
	assert.Equal(t, "hel", events[0].Text)
}

func TestNormalizeOpenAISpeechStartedAndStopped(t *testing.T) {
	started := Normalize("openai", []byte(`{"type":"input_audio_buffer.speech_started"}`))
	require.Len(t, started, 1)
	assert.Equal(t, realtime.EventSpeechStarted, started[0].Type)

	stopped := Normalize("openai", []byte(`{"type":"input_audio_buffer.speech_stopped"}`))
	require.Len(t, stopped, 1)
	assert.Equal(t, realtime.EventSpeechStopped, stopped[0].Type)
}

func TestNormalizeOpenAIError(t *testing.T) {
	raw := []byte(`{"type":"error","error":{"code":"bad_request","message":"nope"}}`)
	events := Normalize("openai", raw)
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventError, events[0].Type)
	assert.Equal(t, "bad_request", events[0].Code)
	assert.Equal(t, "nope", events[0].Message)
	assert.Equal(t, "openai", events[0].Provider)
}

func TestNormalizeOpenAIUnknownTypeYieldsNil(t *testing.T) {
	events := Normalize("openai", []byte(`{"type":"session.created"}`))
	assert.Nil(t, events)
}

func TestNormalizeGeminiModelTurnText(t *testing.T) {
	raw := []byte(`{"serverContent":{"modelTurn":{"parts":[{"text":"hel"},{"text":"lo"}]}}}`)
	events := Normalize("gemini", raw)
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventTranscriptDelta, events[0].Type)
	assert.Equal(t, "hello", events[0].Text)
	assert.Equal(t, "model", events[0].Meta["source"])
}

func TestNormalizeGeminiInputTranscription(t *testing.T) {
	raw := []byte(`{"serverContent":{"inputTranscription":{"text":"hi there"}}}`)
	events := Normalize("gemini-live", raw)
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventTranscriptDelta, events[0].Type)
	assert.Equal(t, "hi there", events[0].Text)
	assert.Equal(t, "input", events[0].Meta["source"])
}

func TestNormalizeGeminiTurnCompleteAndInterrupted(t *testing.T) {
	raw := []byte(`{"serverContent":{"turnComplete":true,"interrupted":true}}`)
	events := Normalize("gemini", raw)
	require.Len(t, events, 2)

	var gotDone, gotInterrupted bool
	for _, e := range events {
		if e.Type == realtime.EventTranscriptDone {
			gotDone = true
		}
		if e.Type == realtime.EventInterrupted {
			gotInterrupted = true
			assert.True(t, e.Interrupted)
		}
	}
	assert.True(t, gotDone)
	assert.True(t, gotInterrupted)
}

func TestNormalizeGeminiUsageAndError(t *testing.T) {
	raw := []byte(`{"usageMetadata":{"totalTokenCount":42},"error":{"message":"boom"}}`)
	events := Normalize("gemini", raw)
	require.Len(t, events, 2)

	var gotUsage, gotError bool
	for _, e := range events {
		if e.Type == realtime.EventUsage {
			gotUsage = true
			assert.Equal(t, float64(42), e.Details["totalTokenCount"])
		}
		if e.Type == realtime.EventError {
			gotError = true
			assert.Equal(t, "boom", e.Message)
			assert.Equal(t, "gemini", e.Provider)
		}
	}
	assert.True(t, gotUsage)
	assert.True(t, gotError)
}

func TestNormalizeGeminiNoServerContentYieldsEmpty(t *testing.T) {
	events := Normalize("gemini", []byte(`{}`))
	assert.Empty(t, events)
}
