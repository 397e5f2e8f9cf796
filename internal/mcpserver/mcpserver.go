// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package mcpserver exposes the model catalog and chat completion as MCP
// tools over the same orchestrator the HTTP surface uses (SPEC_FULL.md §3.2
// enrichment), grounded on the teacher's mark3labs/mcp-go dependency and
// the tool-definition/handler shape of the apresai-podcaster reference
// (`internal/mcpserver/tools.go`).
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/gateway"
	"github.com/rapidaai/gateway/pkg/types"
)

// Server wraps a mark3labs/mcp-go MCPServer exposing list_models,
// get_model_info, and chat_completion.
type Server struct {
	mcp    *server.MCPServer
	gw     *gateway.Gateway
	logger commons.Logger
}

// New constructs the MCP tool surface over an already-wired Gateway.
func New(logger commons.Logger, gw *gateway.Gateway, name, version string) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(name, version),
		gw:     gw,
		logger: logger,
	}
	s.registerTools()
	return s
}

// Handler returns an http.Handler implementing the streamable-HTTP MCP
// transport, mountable alongside the rest of the HTTP surface.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.Tool{
		Name:        "list_models",
		Description: "List every model the gateway can currently route to, across all registered providers.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"capability": map[string]any{"type": "string", "description": "Filter by capability, e.g. completion, embedding, audio, realtime"},
				"provider":   map[string]any{"type": "string", "description": "Filter by provider name"},
			},
		},
	}, s.handleListModels)

	s.mcp.AddTool(mcp.Tool{
		Name:        "get_model_info",
		Description: "Return the full descriptor (capabilities, cost, context window) for one model id.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"model": map[string]any{"type": "string", "description": "Model id"}},
			Required:   []string{"model"},
		},
	}, s.handleGetModelInfo)

	s.mcp.AddTool(mcp.Tool{
		Name:        "chat_completion",
		Description: "Run a non-streaming chat completion through the gateway's routing and failover the same way POST /v1/chat/completions does.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"model": map[string]any{"type": "string", "description": "Model id to route to"},
				"messages": map[string]any{
					"type":        "array",
					"description": "OpenAI-shaped message list: [{role, content}]",
				},
			},
			Required: []string{"model", "messages"},
		},
	}, s.handleChatCompletion)
}

func (s *Server) handleListModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	capability := mcp.ParseString(req, "capability", "")
	provider := mcp.ParseString(req, "provider", "")

	models := s.gw.Registry().GetAvailableModels(ctx)
	filtered := make([]types.ModelDescriptor, 0, len(models))
	for _, m := range models {
		if capability != "" && !m.HasCapability(capability) {
			continue
		}
		if provider != "" && m.Provider != provider {
			continue
		}
		filtered = append(filtered, m)
	}
	return jsonResult(map[string]any{"models": filtered, "count": len(filtered)})
}

func (s *Server) handleGetModelInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model := mcp.ParseString(req, "model", "")
	if model == "" {
		return mcp.NewToolResultError("model is required"), nil
	}
	descriptor, ok := s.gw.Registry().GetModelInfo(ctx, model)
	if !ok {
		return mcp.NewToolResultError("model not found: " + model), nil
	}
	return jsonResult(descriptor)
}

func (s *Server) handleChatCompletion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model := mcp.ParseString(req, "model", "")
	if model == "" {
		return mcp.NewToolResultError("model is required"), nil
	}
	args := req.GetArguments()
	rawMessages, ok := args["messages"]
	if !ok {
		return mcp.NewToolResultError("messages is required"), nil
	}
	encoded, err := json.Marshal(rawMessages)
	if err != nil {
		return mcp.NewToolResultError("invalid messages: " + err.Error()), nil
	}
	var messages []types.Message
	if err := json.Unmarshal(encoded, &messages); err != nil {
		return mcp.NewToolResultError("invalid messages: " + err.Error()), nil
	}

	resp, err := s.gw.ChatCompletion(ctx, types.ChatCompletionRequest{Model: model, Messages: messages})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("marshal result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
