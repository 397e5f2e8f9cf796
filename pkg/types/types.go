// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package types holds the wire-shape DTOs shared across the adapter,
// router, gateway, and realtime packages — the OpenAI-shaped request and
// response bodies every provider adapter normalizes into or out of.
package types

import "time"

// Role is a chat message role, mirroring the OpenAI wire vocabulary.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ModelType classifies the kind of work a model serves (spec.md §3).
type ModelType string

const (
	ModelCompletion    ModelType = "completion"
	ModelEmbedding     ModelType = "embedding"
	ModelTranscription ModelType = "transcription"
	ModelTTS           ModelType = "tts"
)

// Capability names recognized across ModelDescriptor.Capabilities.
const (
	CapCompletion   = "completion"
	CapStreaming    = "streaming"
	CapMultimodal   = "multimodal"
	CapAudio        = "audio"
	CapRealtime     = "realtime"
	CapTools        = "tools"
	CapEmbedding    = "embedding"
	CapTranscribe   = "transcription"
	CapTTS          = "tts"
	CapWebSearch    = "web_search"
)

// Cost describes per-token pricing for a model (spec.md §3).
type Cost struct {
	InputCost  float64 `json:"inputCost"`
	OutputCost float64 `json:"outputCost"`
	Currency   string  `json:"currency"`
	Unit       string  `json:"unit"` // e.g. "per_million_tokens"
}

// ModelDescriptor is the provider-agnostic catalog entry for one model
// (spec.md §3). ID is unique across all providers — model→provider is a
// function, never a relation.
type ModelDescriptor struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	Type          ModelType `json:"type"`
	Capabilities  []string  `json:"capabilities"`
	ContextWindow *int      `json:"contextWindow,omitempty"`
	MaxTokens     *int      `json:"maxTokens,omitempty"`
	Dimensions    *int      `json:"dimensions,omitempty"`
	Costs         *Cost     `json:"costs,omitempty"`
}

// HasCapability reports whether the descriptor advertises cap.
func (m ModelDescriptor) HasCapability(cap string) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Message is one chat message, with OpenAI-shaped multi-part content
// collapsed to plain text for the non-multimodal path; adapters that
// support multimodal content extend via ContentParts.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`
	ToolCallID   string        `json:"tool_call_id,omitempty"`
	ContentParts []ContentPart `json:"content_parts,omitempty"`
}

// ContentPart is one part of a multimodal message (text or image).
type ContentPart struct {
	Type     string `json:"type"` // "text" | "image"
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"-"`
}

// FinishReason mirrors the OpenAI stop-reason vocabulary (spec.md §4.1).
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength         FinishReason = "length"
	FinishContentFilter  FinishReason = "content_filter"
	FinishToolCalls      FinishReason = "tool_calls"
)

// Usage reports token accounting for a completed call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionRequest is the normalized request every adapter accepts.
type ChatCompletionRequest struct {
	RequestID   string    `json:"-"`
	Model       string    `json:"model" validate:"required"`
	Messages    []Message `json:"messages" validate:"required,min=1"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

// Tool is an OpenAI-shaped function-calling tool declaration.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes one callable function within a Tool.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ChatCompletionResponse is the fully-normalized, non-streaming result.
type ChatCompletionResponse struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Provider     string       `json:"provider"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
	CreatedAt    time.Time    `json:"created"`
}

// ChatCompletionChunk is one streamed delta (spec.md §4.1).
type ChatCompletionChunk struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Provider     string       `json:"provider"`
	Delta        string       `json:"delta"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`
}

// EmbeddingRequest is the normalized embedding request; Input is a JSON
// array of strings (a bare string value does not bind), and one vector is
// returned per input in order (spec.md §4.1).
type EmbeddingRequest struct {
	RequestID string   `json:"-"`
	Model     string   `json:"model" validate:"required"`
	Input     []string `json:"input" validate:"required,min=1"`
}

// EmbeddingResponse carries one vector per EmbeddingRequest.Input entry,
// aligned by index.
type EmbeddingResponse struct {
	Model     string      `json:"model"`
	Provider  string      `json:"provider"`
	Vectors   [][]float64 `json:"vectors"`
	Usage     Usage       `json:"usage"`
}

// TranscriptionRequest carries an uploaded audio file for transcription
// or translation (spec.md §4.1).
type TranscriptionRequest struct {
	RequestID   string `json:"-"`
	Model       string `json:"model" validate:"required"`
	File        []byte `json:"-" validate:"required"`
	FileName    string `json:"-"`
	Language    string `json:"language,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// TranscriptionResponse is the normalized transcription/translation result.
type TranscriptionResponse struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// SpeechRequest is the normalized text-to-speech request.
type SpeechRequest struct {
	RequestID string  `json:"-"`
	Model     string  `json:"model" validate:"required"`
	Input     string  `json:"input" validate:"required"`
	Voice     string  `json:"voice" validate:"required"`
	Format    string  `json:"response_format,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

// SpeechResponse carries the synthesized audio bytes and their MIME type.
type SpeechResponse struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Audio    []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

// HealthStatus is the adapter health probe result (spec.md §4.1).
type HealthStatus struct {
	Status       string        `json:"status"` // "healthy" | "unhealthy"
	ResponseTime time.Duration `json:"responseTime"`
	Timestamp    time.Time     `json:"timestamp"`
	Details      string        `json:"details,omitempty"`
}
