// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package adapter

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/pkg/types"
)

var validate = validator.New()

// ValidateChatCompletionRequest enforces the contract invariant of
// spec.md §4.1: presence of model and at least one message, checked
// before any network call is made.
func ValidateChatCompletionRequest(req types.ChatCompletionRequest) error {
	if err := validate.Struct(req); err != nil {
		return commons.Wrap(commons.ErrValidation, fieldError(err), err)
	}
	for _, m := range req.Messages {
		switch m.Role {
		case types.RoleSystem, types.RoleUser, types.RoleAssistant, types.RoleTool:
		default:
			return commons.NewError(commons.ErrValidation, fmt.Sprintf("invalid role %q", m.Role))
		}
	}
	return nil
}

// ValidateEmbeddingRequest enforces presence of model and input.
func ValidateEmbeddingRequest(req types.EmbeddingRequest) error {
	if err := validate.Struct(req); err != nil {
		return commons.Wrap(commons.ErrValidation, fieldError(err), err)
	}
	return nil
}

// ValidateTranscriptionRequest enforces presence of model and file bytes.
func ValidateTranscriptionRequest(req types.TranscriptionRequest) error {
	if err := validate.Struct(req); err != nil {
		return commons.Wrap(commons.ErrValidation, fieldError(err), err)
	}
	return nil
}

var validVoices = map[string]bool{
	"alloy": true, "echo": true, "fable": true, "onyx": true, "nova": true, "shimmer": true,
}

// ValidateSpeechRequest enforces presence of model/input and a recognized
// voice (spec.md §4.1 "valid voice for TTS").
func ValidateSpeechRequest(req types.SpeechRequest) error {
	if err := validate.Struct(req); err != nil {
		return commons.Wrap(commons.ErrValidation, fieldError(err), err)
	}
	if !validVoices[req.Voice] {
		return commons.NewError(commons.ErrValidation, fmt.Sprintf("invalid voice %q", req.Voice)).
			WithDetails(map[string]interface{}{"field": "voice"})
	}
	return nil
}

func fieldError(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %q failed validation: %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}
