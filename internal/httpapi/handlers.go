// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/gateway/internal/auth"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/gateway"
	"github.com/rapidaai/gateway/pkg/types"
)

// Api holds the gateway's controller state, constructed once and bound
// into gin route handlers, matching the teacher's `xApi.New(cfg, logger,
// deps...)` -> `apiv1.POST(path, handler.Method)` shape.
type Api struct {
	logger commons.Logger
	gw     *gateway.Gateway
	minter *auth.Minter
}

// New constructs the controller state.
func New(logger commons.Logger, gw *gateway.Gateway, minter *auth.Minter) *Api {
	return &Api{logger: logger, gw: gw, minter: minter}
}

// ChatCompletions implements POST /v1/chat/completions, including the SSE
// streaming path when `stream: true` (spec.md §6).
func (a *Api) ChatCompletions(c *gin.Context) {
	var req types.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, commons.NewError(commons.ErrValidation, "invalid request body").WithDetails(map[string]interface{}{"parse_error": err.Error()}))
		return
	}

	if req.Stream {
		a.streamChatCompletion(c, req)
		return
	}

	resp, err := a.gw.ChatCompletion(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// streamChatCompletion forwards chunks as SSE lines, terminated by
// `data: [DONE]\n\n` (spec.md §6), grounded on the raw
// http.ResponseWriter/http.Flusher pattern of the ferro-labs-ai-gateway
// reference `writeSSE` helper.
func (a *Api) streamChatCompletion(c *gin.Context, req types.ChatCompletionRequest) {
	ch, err := a.gw.StreamChatCompletion(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for chunk := range ch {
		if chunk.Err != nil {
			env := commons.AsEnvelope(chunk.Err)
			data, _ := json.Marshal(env)
			w.Write([]byte("data: " + string(data) + "\n\n"))
			if flusher != nil {
				flusher.Flush()
			}
			break
		}
		data, err := json.Marshal(chunk.Chunk)
		if err != nil {
			continue
		}
		w.Write([]byte("data: " + string(data) + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}
	w.Write([]byte("data: [DONE]\n\n"))
	if flusher != nil {
		flusher.Flush()
	}
}

// Embeddings implements POST /v1/embeddings.
func (a *Api) Embeddings(c *gin.Context) {
	var req types.EmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, commons.NewError(commons.ErrValidation, "invalid request body"))
		return
	}
	resp, err := a.gw.CreateEmbedding(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Transcriptions implements POST /v1/audio/transcriptions (multipart).
func (a *Api) Transcriptions(c *gin.Context) {
	req, err := a.readAudioMultipart(c)
	if err != nil {
		writeError(c, err)
		return
	}
	resp, err := a.gw.TranscribeAudio(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Translations implements POST /v1/audio/translations (multipart).
func (a *Api) Translations(c *gin.Context) {
	req, err := a.readAudioMultipart(c)
	if err != nil {
		writeError(c, err)
		return
	}
	resp, err := a.gw.TranslateAudio(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *Api) readAudioMultipart(c *gin.Context) (types.TranscriptionRequest, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return types.TranscriptionRequest{}, commons.Wrap(commons.ErrValidation, "missing multipart file field", err)
	}
	f, err := fileHeader.Open()
	if err != nil {
		return types.TranscriptionRequest{}, commons.Wrap(commons.ErrValidation, "opening uploaded file", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return types.TranscriptionRequest{}, commons.Wrap(commons.ErrValidation, "reading uploaded file", err)
	}

	req := types.TranscriptionRequest{
		Model:    c.PostForm("model"),
		File:     data,
		FileName: fileHeader.Filename,
		Language: c.PostForm("language"),
		Prompt:   c.PostForm("prompt"),
	}
	if temp := c.PostForm("temperature"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			req.Temperature = &v
		}
	}
	return req, nil
}

// Speech implements POST /v1/audio/speech, streaming the synthesized
// audio body back with its MIME type (spec.md §6).
func (a *Api) Speech(c *gin.Context) {
	var req types.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, commons.NewError(commons.ErrValidation, "invalid request body"))
		return
	}
	resp, err := a.gw.GenerateSpeech(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, resp.MimeType, resp.Audio)
}

// ListModels implements GET /v1/models with the query filters spec.md §6
// names: capability, type, provider, realtime, search.
func (a *Api) ListModels(c *gin.Context) {
	models := a.gw.Registry().GetAvailableModels(c.Request.Context())
	filtered := filterModels(models, c.Query("capability"), c.Query("type"), c.Query("provider"), c.Query("realtime"), c.Query("search"))
	c.JSON(http.StatusOK, gin.H{"data": filtered, "object": "list"})
}

// GetModel implements GET /v1/models/:id.
func (a *Api) GetModel(c *gin.Context) {
	model, ok := a.gw.Registry().GetModelInfo(c.Request.Context(), c.Param("id"))
	if !ok {
		writeError(c, commons.NewError(commons.ErrModelNotFound, "unknown model "+c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, model)
}

// ModelsByCapability implements GET /v1/models/capability/:cap.
func (a *Api) ModelsByCapability(c *gin.Context) {
	models := a.gw.Registry().GetAvailableModels(c.Request.Context())
	filtered := filterModels(models, c.Param("cap"), "", "", "", "")
	c.JSON(http.StatusOK, gin.H{"data": filtered, "object": "list"})
}

func filterModels(models []types.ModelDescriptor, capability, typ, provider, realtime, search string) []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, 0, len(models))
	for _, m := range models {
		if capability != "" && !m.HasCapability(capability) {
			continue
		}
		if typ != "" && string(m.Type) != typ {
			continue
		}
		if provider != "" && m.Provider != provider {
			continue
		}
		if realtime != "" && realtime == "true" && !m.HasCapability(types.CapRealtime) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.ID), strings.ToLower(search)) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// EphemeralKey implements the enriched POST /v1/realtime/ephemeral-key
// (SPEC_FULL.md §3.1): mints a short-lived provider credential scoped to
// one model/provider.
func (a *Api) EphemeralKey(c *gin.Context) {
	var body struct {
		Model    string `json:"model" binding:"required"`
		Provider string `json:"provider"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, commons.NewError(commons.ErrValidation, "invalid request body"))
		return
	}
	token, expires, err := a.minter.Mint(body.Model, body.Provider)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires})
}
