// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rapidaai/gateway/internal/auth"
	"github.com/rapidaai/gateway/internal/cache"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/config"
	"github.com/rapidaai/gateway/internal/gateway"
	"github.com/rapidaai/gateway/internal/mcpserver"
	"github.com/rapidaai/gateway/internal/realtime"
)

// NewEngine constructs a bare gin.Engine with the CORS middleware the
// teacher's go.mod declares (gin-contrib/cors) applied, matching how the
// teacher's server builds its engine before handing it to each *Routes
// registration function.
func NewEngine(cfg *config.AppConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.CORS.Enabled {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CORS.Origins
		corsCfg.AllowHeaders = []string{"Authorization", "Content-Type", cfg.APIKeyHeader, "x-provider-token", "x-openai-ephemeral-key"}
		engine.Use(cors.New(corsCfg))
	}
	return engine
}

// Deps bundles everything RegisterRoutes needs, mirroring the teacher's
// `XRoutes(cfg, engine, logger, deps...)` parameter-list convention.
type Deps struct {
	Gateway  *gateway.Gateway
	Realtime *realtime.Manager
	Gate     *auth.Gate
	Minter   *auth.Minter
	Cache    cache.Cache
	MCP      *mcpserver.Server
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RegisterRoutes binds every route of spec.md §6 onto engine.
func RegisterRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, deps Deps) {
	api := New(logger, deps.Gateway, deps.Minter)
	health := NewHealth(deps.Gateway.Registry(), deps.Cache)
	rl := newRateLimiter(time.Duration(cfg.RateLimit.WindowMs)*time.Millisecond, cfg.RateLimit.MaxRequests)

	engine.GET("/health", health.Health)
	engine.GET("/health/ready", health.Ready)
	engine.GET("/health/live", health.Live)
	engine.GET("/health/detailed", health.Detailed)
	engine.GET("/health/metrics", health.Metrics)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.Use(rateLimitMiddleware(rl))
	if cfg.RequireAuthHeader {
		v1.Use(authMiddleware(deps.Gate))
	}
	{
		v1.POST("/chat/completions", api.ChatCompletions)
		v1.POST("/embeddings", api.Embeddings)
		v1.POST("/audio/transcriptions", api.Transcriptions)
		v1.POST("/audio/translations", api.Translations)
		v1.POST("/audio/speech", api.Speech)
		v1.GET("/models", api.ListModels)
		v1.GET("/models/:id", api.GetModel)
		v1.GET("/models/capability/:cap", api.ModelsByCapability)
		v1.POST("/realtime/ephemeral-key", api.EphemeralKey)

		v1.GET("/realtime/transcription", realtimeUpgradeHandler(logger, deps.Realtime))
		v1.GET("/realtime/transcribe", deprecatedRealtimeHandler)
	}

	if deps.MCP != nil {
		engine.Any("/mcp", gin.WrapH(deps.MCP.Handler()))
		engine.Any("/mcp/*any", gin.WrapH(deps.MCP.Handler()))
	}
}

// realtimeUpgradeHandler upgrades the connection and runs one Session to
// completion (spec.md §4.6), blocking for the life of the WebSocket.
func realtimeUpgradeHandler(logger commons.Logger, mgr *realtime.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warnf("realtime websocket upgrade failed: %v", err)
			return
		}
		mgr.Serve(c.Request.Context(), conn)
	}
}

// deprecatedRealtimeHandler implements the 410 Gone response for the
// retired `/v1/realtime/transcribe` upgrade path (spec.md §6,
// SPEC_FULL.md's Open Question resolution).
func deprecatedRealtimeHandler(c *gin.Context) {
	c.String(http.StatusGone, "Deprecated endpoint. Use /v1/realtime/transcription")
}
