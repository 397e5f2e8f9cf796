// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package gemini implements the C1 adapter contract over the
// Gemini-compatible chat/embeddings surface (google.golang.org/genai) and
// Google Cloud Speech/Text-to-Speech for audio (spec.md §4.1).
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"time"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"github.com/rapidaai/gateway/internal/adapter"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/pkg/types"
)

const (
	defaultLanguageCode = "en-US"
	defaultVoice        = "en-US-Chirp-HD-F"
)

// Config wires one Gemini-compatible upstream (spec.md §6 GEMINI_API_KEY).
type Config struct {
	Name        string
	APIKey      string
	ProjectID   string
	Region      string
	Models      []types.ModelDescriptor
	CostPerMTok map[string]types.Cost
}

// Adapter implements adapter.Adapter over Gemini chat/embeddings plus
// Google Cloud Speech/TTS for audio.
type Adapter struct {
	name      string
	cfg       Config
	genClient *genai.Client
	clientOpt []option.ClientOption
	models    []types.ModelDescriptor
	costs     map[string]types.Cost
	logger    commons.Logger
	metrics   *adapter.MetricsRecorder
}

// New constructs an uninitialized Adapter. Call Initialize before use.
func New(logger commons.Logger, cfg Config) *Adapter {
	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	opts := []option.ClientOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(cfg.ProjectID))
	}
	return &Adapter{
		name:      name,
		cfg:       cfg,
		clientOpt: opts,
		models:    cfg.Models,
		costs:     cfg.CostPerMTok,
		logger:    logger,
		metrics:   adapter.NewMetricsRecorder(1000),
	}
}

func (a *Adapter) Name() string { return a.name }

// Initialize constructs the genai client and runs one health probe
// (spec.md §4.1).
func (a *Adapter) Initialize(ctx context.Context) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return commons.Wrap(commons.ErrInternal, "constructing gemini client", err).WithProvider(a.name)
	}
	a.genClient = client
	_, err = a.HealthCheck(ctx)
	return err
}

// HealthCheck issues a minimal generate call bounded to 5s (spec.md §4.1).
func (a *Adapter) HealthCheck(ctx context.Context) (types.HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	model := "gemini-1.5-flash"
	if len(a.models) > 0 {
		model = a.models[0].ID
	}

	start := time.Now()
	_, err := a.genClient.Models.GenerateContent(ctx, model,
		genai.Text("ping"), &genai.GenerateContentConfig{MaxOutputTokens: 1})
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
	contents, sysInstruction := buildContents(req.Messages)
	cfg := buildGenerateConfig(req, sysInstruction)

	resp, err := a.genClient.Models.GenerateContent(ctx, req.Model, contents, cfg)
	a.record(err == nil, time.Since(start))
	if err != nil {
		return types.ChatCompletionResponse{}, classifyError(a.name, err)
	}
	if len(resp.Candidates) == 0 {
		return types.ChatCompletionResponse{}, commons.NewError(commons.ErrProviderFatal, "empty candidates in gemini response").WithProvider(a.name)
	}

	return types.ChatCompletionResponse{
		ID:           fmt.Sprintf("gemini-%d", time.Now().UnixNano()),
		Model:        req.Model,
		Provider:     a.name,
		Message:      types.Message{Role: types.RoleAssistant, Content: resp.Text()},
		FinishReason: mapFinishReason(string(resp.Candidates[0].FinishReason)),
		Usage:        usageFromResponse(resp),
		CreatedAt:    time.Now(),
	}, nil
}

// StreamChatCompletion implements adapter.Adapter over genai's streaming
// iterator, translated into a channel of normalized chunks (spec.md
// §4.1, same "async iterators become channels" shape as the OpenAI
// adapter).
func (a *Adapter) StreamChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (<-chan adapter.ChatStreamChunk, error) {
	contents, sysInstruction := buildContents(req.Messages)
	cfg := buildGenerateConfig(req, sysInstruction)

	iter := a.genClient.Models.GenerateContentStream(ctx, req.Model, contents, cfg)

	out := make(chan adapter.ChatStreamChunk, 32)
	go func() {
		defer close(out)
		start := time.Now()
		success := true

	streamLoop:
		for resp, err := range iter {
			if err != nil {
				success = false
				select {
				case out <- adapter.ChatStreamChunk{Err: classifyError(a.name, err)}:
				case <-ctx.Done():
				}
				break streamLoop
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			chunk := types.ChatCompletionChunk{
				Model:    req.Model,
				Provider: a.name,
				Delta:    resp.Text(),
			}
			if fr := resp.Candidates[0].FinishReason; fr != "" {
				chunk.FinishReason = mapFinishReason(string(fr))
			}
			select {
			case out <- adapter.ChatStreamChunk{Chunk: chunk}:
			case <-ctx.Done():
				success = false
				break streamLoop
			}
		}
		a.record(success, time.Since(start))
	}()
	return out, nil
}

// CreateEmbedding implements adapter.Adapter.
func (a *Adapter) CreateEmbedding(ctx context.Context, req types.EmbeddingRequest) (types.EmbeddingResponse, error) {
	start := time.Now()
	contents := make([]*genai.Content, 0, len(req.Input))
	for _, s := range req.Input {
		contents = append(contents, genai.NewContentFromText(s, genai.RoleUser))
	}

	resp, err := a.genClient.Models.EmbedContent(ctx, req.Model, contents, nil)
	a.record(err == nil, time.Since(start))
	if err != nil {
		return types.EmbeddingResponse{}, classifyError(a.name, err)
	}

	vectors := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vec := make([]float64, len(e.Values))
		for j, v := range e.Values {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}
	return types.EmbeddingResponse{Model: req.Model, Provider: a.name, Vectors: vectors}, nil
}

// TranscribeAudio implements adapter.Adapter over Google Cloud
// Speech-to-Text v2, grounded on the teacher's SpeechToTextOptions shape
// (LINEAR16, 16kHz, mono, automatic punctuation).
func (a *Adapter) TranscribeAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	start := time.Now()
	client, err := speech.NewClient(ctx, a.clientOpt...)
	if err != nil {
		return types.TranscriptionResponse{}, commons.Wrap(commons.ErrProviderTransient, "constructing speech client", err).WithProvider(a.name)
	}
	defer client.Close()

	lang := req.Language
	if lang == "" {
		lang = defaultLanguageCode
	}
	recognizer := a.recognizerPath()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Recognizer: recognizer,
		Config: &speechpb.RecognitionConfig{
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   16000,
					AudioChannelCount: 1,
				},
			},
			Features: &speechpb.RecognitionFeatures{
				EnableAutomaticPunctuation: true,
			},
			LanguageCodes: []string{lang},
			Model:         "long",
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: req.File},
	})
	a.record(err == nil, time.Since(start))
	if err != nil {
		return types.TranscriptionResponse{}, classifyError(a.name, err)
	}

	var buf bytes.Buffer
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		buf.WriteString(result.Alternatives[0].Transcript)
	}
	return types.TranscriptionResponse{Model: req.Model, Provider: a.name, Text: buf.String(), Language: lang}, nil
}

// TranslateAudio implements adapter.Adapter. Google Cloud Speech-to-Text
// does not offer a dedicated translate endpoint; translation is
// transcription in the configured target language, matching the
// teacher's single-recognizer design.
func (a *Adapter) TranslateAudio(ctx context.Context, req types.TranscriptionRequest) (types.TranscriptionResponse, error) {
	return a.TranscribeAudio(ctx, req)
}

func (a *Adapter) recognizerPath() string {
	region := a.cfg.Region
	if region == "" || region == "global" {
		return fmt.Sprintf("projects/%s/locations/global/recognizers/_", a.cfg.ProjectID)
	}
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", a.cfg.ProjectID, region)
}

// GenerateSpeech implements adapter.Adapter over Google Cloud
// Text-to-Speech, grounded on the teacher's TextToSpeechOptions shape.
func (a *Adapter) GenerateSpeech(ctx context.Context, req types.SpeechRequest) (types.SpeechResponse, error) {
	start := time.Now()
	client, err := texttospeech.NewClient(ctx, a.clientOpt...)
	if err != nil {
		return types.SpeechResponse{}, commons.Wrap(commons.ErrProviderTransient, "constructing texttospeech client", err).WithProvider(a.name)
	}
	defer client.Close()

	voice := req.Voice
	if voice == "" {
		voice = defaultVoice
	}

	resp, err := client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Input}},
		Voice: &texttospeechpb.VoiceSelectionParams{Name: voice, LanguageCode: defaultLanguageCode},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: 16000,
		},
	})
	a.record(err == nil, time.Since(start))
	if err != nil {
		return types.SpeechResponse{}, classifyError(a.name, err)
	}
	return types.SpeechResponse{Model: req.Model, Provider: a.name, Audio: resp.AudioContent, MimeType: "audio/l16"}, nil
}

// ListSupportedModels implements adapter.Adapter.
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

// Destroy implements adapter.Adapter; the genai client holds no socket to
// close, Speech/TTS clients are constructed and closed per-call above.
func (a *Adapter) Destroy(ctx context.Context) error { return nil }

func buildContents(messages []types.Message) ([]*genai.Content, *genai.Content) {
	var sysInstruction *genai.Content
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			sysInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, sysInstruction
}

func buildGenerateConfig(req types.ChatCompletionRequest, sysInstruction *genai.Content) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{SystemInstruction: sysInstruction}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.TopP != nil {
		p := float32(*req.TopP)
		cfg.TopP = &p
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if len(req.Stop) > 0 {
		cfg.StopSequences = req.Stop
	}
	for _, t := range req.Tools {
		cfg.Tools = append(cfg.Tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        t.Function.Name,
				Description: t.Function.Description,
			}},
		})
	}
	return cfg
}

func usageFromResponse(resp *genai.GenerateContentResponse) types.Usage {
	if resp.UsageMetadata == nil {
		return types.Usage{}
	}
	return types.Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

func mapFinishReason(reason string) types.FinishReason {
	switch reason {
	case "MAX_TOKENS":
		return types.FinishLength
	case "SAFETY", "RECITATION":
		return types.FinishContentFilter
	default:
		return types.FinishStop
	}
}

// classifyError maps a genai/Google API error into the gateway's
// taxonomy (spec.md §7).
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if asAPIError(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return commons.Wrap(commons.ErrAuthentication, apiErr.Message, err).WithProvider(provider)
		case apiErr.Code == 404:
			return commons.Wrap(commons.ErrModelNotFound, apiErr.Message, err).WithProvider(provider)
		case apiErr.Code == 429:
			return commons.Wrap(commons.ErrRateLimit, apiErr.Message, err).WithProvider(provider)
		case apiErr.Code >= 500:
			return commons.Wrap(commons.ErrProviderTransient, apiErr.Message, err).WithProvider(provider)
		case apiErr.Code >= 400:
			return commons.Wrap(commons.ErrValidation, apiErr.Message, err).WithProvider(provider)
		}
	}
	return commons.Wrap(commons.ErrProviderTransient, fmt.Sprintf("gemini request failed: %v", err), err).WithProvider(provider)
}

func asAPIError(err error, target *genai.APIError) bool {
	apiErr, ok := err.(genai.APIError)
	if ok {
		*target = apiErr
	}
	return ok
}
