// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package openai implements the C1 adapter contract over the
// OpenAI-compatible chat/embeddings/audio surface using openai/openai-go.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/pkoukk/tiktoken-go"

	"github.com/rapidaai/gateway/internal/adapter"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/pkg/types"
)

// Config wires one OpenAI-compatible upstream (spec.md §6 OPENAI_API_KEY,
// plus an optional BaseURL for OpenAI-compatible third parties).
type Config struct {
	Name        string
	APIKey      string
	BaseURL     string
	Models      []types.ModelDescriptor
	CostPerMTok map[string]types.Cost
	Timeout     time.Duration
}

// Adapter implements adapter.Adapter over the OpenAI chat/embeddings/
// audio surface.
type Adapter struct {
	name    string
	client  oai.Client
	models  []types.ModelDescriptor
	costs   map[string]types.Cost
	logger  commons.Logger
	metrics *adapter.MetricsRecorder
}

// New constructs an uninitialized Adapter. Call Initialize before use.
func New(logger commons.Logger, cfg Config) *Adapter {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	httpTimeout := cfg.Timeout
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: httpTimeout}))

	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &Adapter{
		name:    name,
		client:  oai.NewClient(reqOpts...),
		models:  cfg.Models,
		costs:   cfg.CostPerMTok,
		logger:  logger,
		metrics: adapter.NewMetricsRecorder(1000),
	}
}

func (a *Adapter) Name() string { return a.name }

// Initialize runs one health probe (spec.md §4.1) and nothing else. The
// configured key and BaseURL are not checked beforehand: an empty or
// rejected key surfaces only as the probe's error.
func (a *Adapter) Initialize(ctx context.Context) error {
	_, err := a.HealthCheck(ctx)
	return err
}

// HealthCheck lists models as a cheap liveness probe, bounded to 5s
// (spec.md §4.1 default).
func (a *Adapter) HealthCheck(ctx context.Context) (types.HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := a.client.Models.List(ctx)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return types.HealthStatus{Status: "unhealthy", ResponseTime: latency, Timestamp: time.Now(), Details: err.Error()},
				commons.Wrap(commons.ErrRequestTimeout, "health check timed out", err).WithProvider(a.name)
		}
		return types.HealthStatus{Status: "unhealthy", ResponseTime: latency, Timestamp: time.Now(), Details: err.Error()},
			classifyError(a.name, err)
	}
	return types.HealthStatus{Status: "healthy", ResponseTime: latency, Timestamp: time.Now()}, nil
}

func (a *Adapter) record(success bool, d time.Duration) { a.metrics.Record(success, d) }

// ChatCompletion implements adapter.Adapter.
func (a *Adapter) ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (types.ChatCompletionResponse, error) {
	start := time.Now()
	params := buildChatParams(req)

	resp, err := a.client.Chat.Completions.New(ctx, params)
	a.record(err == nil, time.Since(start))
	if err != nil {
		return types.ChatCompletionResponse{}, classifyError(a.name, err)
	}
	if len(resp.Choices) == 0 {
		return types.ChatCompletionResponse{}, commons.NewError(commons.ErrProviderFatal, "empty choices in openai response").WithProvider(a.name)
	}

	choice := resp.Choices[0]
	return types.ChatCompletionResponse{
		ID:           resp.ID,
		Model:        string(resp.Model),
		Provider:     a.name,
		Message:      types.Message{Role: types.RoleAssistant, Content: choice.Message.Content},
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage: types.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		CreatedAt: time.Now(),
	}, nil
}

// StreamChatCompletion implements adapter.Adapter, translating the
// openai-go streaming iterator into a channel of normalized chunks
// (spec.md §4.1, grounded on the teacher pack's openai.go StreamCompletion).
func (a *Adapter) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (<-chan adapter.ChatStreamChunk, error) {
	params := buildChatParams(req)
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, classifyError(a.name, err)
	}

	out := make(chan adapter.ChatStreamChunk, 32)
	go func() {
		defer close(out)
		defer stream.Close()
		start := time.Now()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			normalized := types.ChatCompletionChunk{
				ID:       chunk.ID,
				Model:    string(chunk.Model),
				Provider: a.name,
				Delta:    choice.Delta.Content,
			}
			if choice.FinishReason != "" {
				normalized.FinishReason = mapFinishReason(choice.FinishReason)
			}
			select {
			case out <- adapter.ChatStreamChunk{Chunk: normalized}:
			case <-ctx.Done():
				a.record(false, time.Since(start))
				return
			}
		}

		if err := stream.Err(); err != nil {
			a.record(false, time.Since(start))
			select {
			case out <- adapter.ChatStreamChunk{Err: classifyError(a.name, err)}:
			case <-ctx.Done():
			}
			return
		}
		a.record(true, time.Since(start))
	}()
	return out, nil
}

// CreateEmbedding implements adapter.Adapter.
func (a *Adapter) CreateEmbedding(ctx context.Context, req types.EmbeddingRequest) (types.EmbeddingResponse, error) {
	start := time.Now()
	params := oai.EmbeddingNewParams{
		Model: oai.EmbeddingModel(req.Model),
		Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: req.Input},
	}
	resp, err := a.client.Embeddings.New(ctx, params)
	a.record(err == nil, time.Since(start))
	if err != nil {
		return types.EmbeddingResponse{}, classifyError(a.name, err)
	}

	vectors := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return types.EmbeddingResponse{
		Model:    req.Model,
		Provider: a.name,
		Vectors:  vectors,
		Usage: types.Usage{
			PromptTokens: int(resp.Usage.PromptTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

// TranscribeAudio implements adapter.Adapter over the Whisper-shaped
// transcription endpoint.
func (a *Adapter) TranscribeAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	return a.transcribeOrTranslate(ctx, req, false)
}

// TranslateAudio implements adapter.Adapter over the translation endpoint.
func (a *Adapter) TranslateAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	return a.transcribeOrTranslate(ctx, req, true)
}

func (a *Adapter) transcribeOrTranslate(ctx context.Context, req types.TranscriptionRequest, translate bool) (types.TranscriptionResponse, error) {
	start := time.Now()
	reader := io.NopCloser(bytes.NewReader(req.File))
	file := oai.File(reader, req.FileName, "application/octet-stream")

	var text string
	var err error
	if translate {
		params := oai.AudioTranslationNewParams{Model: oai.AudioModel(req.Model), File: file}
		var resp oai.Translation
		resp, err = a.client.Audio.Translations.New(ctx, params)
		if err == nil {
			text = resp.Text
		}
	} else {
		params := oai.AudioTranscriptionNewParams{Model: oai.AudioModel(req.Model), File: file}
		if req.Language != "" {
			params.Language = param.NewOpt(req.Language)
		}
		if req.Prompt != "" {
			params.Prompt = param.NewOpt(req.Prompt)
		}
		var resp oai.Transcription
		resp, err = a.client.Audio.Transcriptions.New(ctx, params)
		if err == nil {
			text = resp.Text
		}
	}
	a.record(err == nil, time.Since(start))
	if err != nil {
		return types.TranscriptionResponse{}, classifyError(a.name, err)
	}
	return types.TranscriptionResponse{Model: req.Model, Provider: a.name, Text: text, Language: req.Language}, nil
}

// GenerateSpeech implements adapter.Adapter over the TTS endpoint.
func (a *Adapter) GenerateSpeech(ctx context.Context, req types.SpeechRequest) (types.SpeechResponse, error) {
	start := time.Now()
	params := oai.AudioSpeechNewParams{
		Model: oai.SpeechModel(req.Model),
		Input: req.Input,
		Voice: oai.AudioSpeechNewParamsVoice(req.Voice),
	}
	if req.Format != "" {
		params.ResponseFormat = oai.AudioSpeechNewParamsResponseFormat(req.Format)
	}
	if req.Speed > 0 {
		params.Speed = param.NewOpt(req.Speed)
	}

	resp, err := a.client.Audio.Speech.New(ctx, params)
	a.record(err == nil, time.Since(start))
	if err != nil {
		return types.SpeechResponse{}, classifyError(a.name, err)
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.SpeechResponse{}, commons.Wrap(commons.ErrInternal, "reading openai speech response", err).WithProvider(a.name)
	}

	mime := "audio/mpeg"
	if req.Format != "" {
		mime = "audio/" + req.Format
	}
	return types.SpeechResponse{Model: req.Model, Provider: a.name, Audio: audio, MimeType: mime}, nil
}

// ListSupportedModels implements adapter.Adapter, returning the
// statically configured catalog (OpenAI's /models endpoint does not
// carry cost/capability metadata, so the catalog is operator-supplied).
func (a *Adapter) ListSupportedModels(ctx context.Context) ([]types.ModelDescriptor, error) {
	return a.models, nil
}

// GetCostInfo implements adapter.Adapter.
func (a *Adapter) GetCostInfo(modelID string) (*types.Cost, bool) {
	c, ok := a.costs[modelID]
	if !ok {
		return nil, false
	}
	return &c, true
}

// GetMetrics implements adapter.Adapter.
func (a *Adapter) GetMetrics() adapter.Metrics { return a.metrics.Snapshot() }

// Destroy implements adapter.Adapter; the openai-go client holds no
// persistent connection to tear down.
func (a *Adapter) Destroy(ctx context.Context) error { return nil }

// EstimateTokens uses tiktoken-go to estimate prompt tokens for
// cost_optimized routing ahead of an actual call (spec.md §4.4, router
// cost estimation).
func EstimateTokens(model string, messages []types.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil)) + 4
	}
	return total, nil
}

func buildChatParams(req types.ChatCompletionRequest) oai.ChatCompletionNewParams {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = param.NewOpt(*req.TopP)
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = param.NewOpt(int64(*req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		params.Stop = oai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: param.NewOpt(t.Function.Description),
				Parameters:  shared.FunctionParameters(t.Function.Parameters),
			},
		})
	}
	return params
}

func convertMessage(m types.Message) oai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case types.RoleSystem:
		return oai.SystemMessage(m.Content)
	case types.RoleAssistant:
		asst := oai.ChatCompletionAssistantMessageParam{}
		if m.Content != "" {
			asst.Content.OfString = oai.String(m.Content)
		}
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
	case types.RoleTool:
		return oai.ToolMessage(m.Content, m.ToolCallID)
	case types.RoleUser:
		fallthrough
	default:
		return oai.UserMessage(m.Content)
	}
}

func mapFinishReason(reason string) types.FinishReason {
	switch reason {
	case "length":
		return types.FinishLength
	case "content_filter":
		return types.FinishContentFilter
	case "tool_calls":
		return types.FinishToolCalls
	case "stop":
		fallthrough
	default:
		return types.FinishStop
	}
}

// classifyError maps an openai-go error into the gateway's taxonomy
// (spec.md §7): the orchestrator inspects only the taxonomy, never raw
// HTTP codes.
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *oai.Error
	if ok := errorsAs(err, &apiErr); ok {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return commons.Wrap(commons.ErrAuthentication, apiErr.Message, err).WithProvider(provider)
		case apiErr.StatusCode == 404:
			return commons.Wrap(commons.ErrModelNotFound, apiErr.Message, err).WithProvider(provider)
		case apiErr.StatusCode == 429:
			return commons.Wrap(commons.ErrRateLimit, apiErr.Message, err).WithProvider(provider)
		case apiErr.StatusCode >= 500:
			return commons.Wrap(commons.ErrProviderTransient, apiErr.Message, err).WithProvider(provider)
		case apiErr.StatusCode >= 400:
			return commons.Wrap(commons.ErrValidation, apiErr.Message, err).WithProvider(provider)
		}
	}
	return commons.Wrap(commons.ErrProviderTransient, fmt.Sprintf("openai request failed: %v", err), err).WithProvider(provider)
}

func errorsAs(err error, target **oai.Error) bool {
	apiErr, ok := err.(*oai.Error)
	if ok {
		*target = apiErr
	}
	return ok
}
