// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/pkg/types"
)

func TestValidateChatCompletionRequestRequiresModelAndMessages(t *testing.T) {
	err := ValidateChatCompletionRequest(types.ChatCompletionRequest{})
	assert.True(t, commons.IsCode(err, commons.ErrValidation))

	err = ValidateChatCompletionRequest(types.ChatCompletionRequest{Model: "gpt-4o"})
	assert.True(t, commons.IsCode(err, commons.ErrValidation), "empty messages should fail")
}

func TestValidateChatCompletionRequestRejectsUnknownRole(t *testing.T) {
	req := types.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []types.Message{{Role: "narrator", Content: "hi"}},
	}
	err := ValidateChatCompletionRequest(req)
	assert.True(t, commons.IsCode(err, commons.ErrValidation))
}

func TestValidateChatCompletionRequestAcceptsValidRequest(t *testing.T) {
	req := types.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	}
	assert.NoError(t, ValidateChatCompletionRequest(req))
}

func TestValidateEmbeddingRequestRequiresInput(t *testing.T) {
	err := ValidateEmbeddingRequest(types.EmbeddingRequest{Model: "text-embedding-3-small"})
	assert.True(t, commons.IsCode(err, commons.ErrValidation))

	assert.NoError(t, ValidateEmbeddingRequest(types.EmbeddingRequest{Model: "text-embedding-3-small", Input: []string{"hi"}}))
}

func TestValidateTranscriptionRequestRequiresFile(t *testing.T) {
	err := ValidateTranscriptionRequest(types.TranscriptionRequest{Model: "whisper-1"})
	assert.True(t, commons.IsCode(err, commons.ErrValidation))

	assert.NoError(t, ValidateTranscriptionRequest(types.TranscriptionRequest{Model: "whisper-1", File: []byte("riff")}))
}

func TestValidateSpeechRequestRejectsUnknownVoice(t *testing.T) {
	req := types.SpeechRequest{Model: "tts-1", Input: "hello", Voice: "robotron"}
	err := ValidateSpeechRequest(req)
	assert.True(t, commons.IsCode(err, commons.ErrValidation))
}

func TestValidateSpeechRequestAcceptsKnownVoice(t *testing.T) {
	req := types.SpeechRequest{Model: "tts-1", Input: "hello", Voice: "alloy"}
	assert.NoError(t, ValidateSpeechRequest(req))
}
