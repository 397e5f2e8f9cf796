// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Command gateway is the process entrypoint: it wires config, logging,
// the provider registry, the orchestrator, the realtime multiplexer, and
// the HTTP surface together, then serves until SIGINT/SIGTERM (grounded
// on the ferro-labs-ai-gateway reference `cmd/ferrogw/main.go`'s
// signal.NotifyContext + http.Server.Shutdown pattern).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rapidaai/gateway/internal/adapter"
	adapterGemini "github.com/rapidaai/gateway/internal/adapter/gemini"
	adapterOpenAI "github.com/rapidaai/gateway/internal/adapter/openai"
	"github.com/rapidaai/gateway/internal/auth"
	"github.com/rapidaai/gateway/internal/breaker"
	"github.com/rapidaai/gateway/internal/cache"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/commons/telemetry"
	"github.com/rapidaai/gateway/internal/config"
	"github.com/rapidaai/gateway/internal/gateway"
	"github.com/rapidaai/gateway/internal/httpapi"
	"github.com/rapidaai/gateway/internal/mcpserver"
	"github.com/rapidaai/gateway/internal/realtime"
	"github.com/rapidaai/gateway/internal/realtime/normalize"
	realtimeGemini "github.com/rapidaai/gateway/internal/realtime/gemini"
	realtimeOpenAI "github.com/rapidaai/gateway/internal/realtime/openai"
	"github.com/rapidaai/gateway/internal/registry"
	"github.com/rapidaai/gateway/internal/router"
	"github.com/rapidaai/gateway/pkg/types"
)

func main() {
	v, err := config.InitConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		log.Fatalf("validating config: %v", err)
	}

	logger := commons.NewLogger(commons.LogConfig{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	shutdownTracing := telemetry.InitProvider(cfg.Name)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	reg := buildRegistry(logger, cfg)
	rt := router.New(router.Config{CacheTTL: cfg.Router.CacheTTL})
	gw := gateway.New(logger, reg, rt, gateway.Config{
		Strategy:       router.Strategy(cfg.Router.Strategy),
		MaxConcurrency: cfg.CircuitBreaker.MaxConcurrency,
		QueueSize:      cfg.CircuitBreaker.AdmissionQueueSize,
		BreakerConfig: breaker.Config{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			Timeout:          cfg.CircuitBreaker.OpenDuration,
		},
	})

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	summary := reg.InitializeAll(initCtx)
	initCancel()
	logger.Infof("provider initialization: %d/%d succeeded", summary.Successful, summary.Total)
	for _, initErr := range summary.Errors {
		logger.Warnf("provider initialization error: %v", initErr)
	}

	realtimeMgr := buildRealtimeManager(logger, cfg)

	gate := auth.NewGate(cfg.APIKeyHeader, derivePrimaryAPIKey(cfg), cfg.RequireAuthHeader)
	minter := auth.NewMinter(cfg.JWTSecret, cfg.Realtime.CredentialTTL)

	gatewayCache := buildCache(cfg)

	mcp := mcpserver.New(logger, gw, cfg.Name, cfg.Version)

	engine := httpapi.NewEngine(cfg)
	httpapi.RegisterRoutes(cfg, engine, logger, httpapi.Deps{
		Gateway:  gw,
		Realtime: realtimeMgr,
		Gate:     gate,
		Minter:   minter,
		Cache:    gatewayCache,
		MCP:      mcp,
	})

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown error: %v", err)
		}
		reg.Destroy(shutdownCtx)
	}()

	logger.Infof("%s %s listening on %s", cfg.Name, cfg.Version, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("server error: %v", err)
	}
	logger.Info("server stopped")
}

// buildRegistry registers the two provider adapters spec.md fixes the
// gateway's provider set to, plus any providers.yaml overrides.
func buildRegistry(logger commons.Logger, cfg *config.AppConfig) *registry.Registry {
	reg := registry.New(logger, registry.Config{
		HealthCheckInterval: time.Duration(cfg.Router.HealthProbeMs) * time.Millisecond,
	})

	if cfg.OpenAIAPIKey != "" {
		a := adapterOpenAI.New(logger, adapterOpenAI.Config{
			Name:   "openai",
			APIKey: cfg.OpenAIAPIKey,
			Models: defaultOpenAIModels(),
		})
		if err := reg.Register("openai", a); err != nil {
			logger.Errorf("registering openai adapter: %v", err)
		}
	}
	if cfg.GeminiAPIKey != "" {
		a := adapterGemini.New(logger, adapterGemini.Config{
			Name:   "gemini",
			APIKey: cfg.GeminiAPIKey,
			Models: defaultGeminiModels(),
		})
		if err := reg.Register("gemini", a); err != nil {
			logger.Errorf("registering gemini adapter: %v", err)
		}
	}

	for _, p := range cfg.Providers {
		var a adapter.Adapter
		switch p.Kind {
		case "openai":
			a = adapterOpenAI.New(logger, adapterOpenAI.Config{Name: p.Name, APIKey: p.APIKey, BaseURL: p.BaseURL, Models: modelsFromNames(p.Name, p.Models)})
		case "gemini":
			a = adapterGemini.New(logger, adapterGemini.Config{Name: p.Name, APIKey: p.APIKey, Models: modelsFromNames(p.Name, p.Models)})
		default:
			logger.Warnf("providers.yaml: unknown provider kind %q for %q", p.Kind, p.Name)
			continue
		}
		if err := reg.Register(p.Name, a); err != nil {
			logger.Errorf("registering provider %q: %v", p.Name, err)
		}
	}
	return reg
}

func modelsFromNames(provider string, names []string) []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, 0, len(names))
	for _, n := range names {
		out = append(out, types.ModelDescriptor{ID: n, Provider: provider, Type: types.ModelCompletion, Capabilities: []string{types.CapCompletion, types.CapStreaming}})
	}
	return out
}

func defaultOpenAIModels() []types.ModelDescriptor {
	return []types.ModelDescriptor{
		{ID: "gpt-4o", Provider: "openai", Type: types.ModelCompletion, Capabilities: []string{types.CapCompletion, types.CapStreaming, types.CapMultimodal, types.CapTools}},
		{ID: "gpt-4o-mini", Provider: "openai", Type: types.ModelCompletion, Capabilities: []string{types.CapCompletion, types.CapStreaming, types.CapTools}},
		{ID: "text-embedding-3-small", Provider: "openai", Type: types.ModelEmbedding, Capabilities: []string{types.CapEmbedding}},
		{ID: "whisper-1", Provider: "openai", Type: types.ModelTranscription, Capabilities: []string{types.CapTranscribe}},
		{ID: "tts-1", Provider: "openai", Type: types.ModelTTS, Capabilities: []string{types.CapTTS}},
		{ID: "gpt-4o-realtime-preview", Provider: "openai", Type: types.ModelCompletion, Capabilities: []string{types.CapRealtime}},
	}
}

func defaultGeminiModels() []types.ModelDescriptor {
	return []types.ModelDescriptor{
		{ID: "gemini-1.5-pro", Provider: "gemini", Type: types.ModelCompletion, Capabilities: []string{types.CapCompletion, types.CapStreaming, types.CapMultimodal, types.CapTools}},
		{ID: "gemini-1.5-flash", Provider: "gemini", Type: types.ModelCompletion, Capabilities: []string{types.CapCompletion, types.CapStreaming, types.CapTools}},
		{ID: "text-embedding-004", Provider: "gemini", Type: types.ModelEmbedding, Capabilities: []string{types.CapEmbedding}},
		{ID: "gemini-live-2.5-flash", Provider: "gemini", Type: types.ModelCompletion, Capabilities: []string{types.CapRealtime}},
	}
}

// buildRealtimeManager wires the two realtime provider adapter factories
// and a model→provider resolution map (spec.md §4.6).
func buildRealtimeManager(logger commons.Logger, cfg *config.AppConfig) *realtime.Manager {
	factories := map[string]realtime.AdapterFactory{
		"openai": func() realtime.UpstreamAdapter {
			return realtimeOpenAI.New(logger, realtimeOpenAI.Config{WSURL: cfg.Realtime.OpenAIWSURL, APIKey: cfg.OpenAIAPIKey})
		},
		"gemini": func() realtime.UpstreamAdapter {
			return realtimeGemini.New(logger, realtimeGemini.Config{WSURL: cfg.Realtime.GeminiWSURL, APIKey: cfg.GeminiAPIKey})
		},
	}
	modelMap := map[string]string{
		"gpt-4o-realtime-preview": "openai",
		"gemini-live-2.5-flash":   "gemini",
	}
	return realtime.NewManager(logger, realtime.Config{
		OutboundQueueSize: cfg.Realtime.OutboundBufferSize,
		InboundQueueSize:  cfg.Realtime.InboundBufferSize,
		MaxIdle:           cfg.Realtime.IdleTimeout,
	}, factories, modelMap, normalize.Normalize)
}

func buildCache(cfg *config.AppConfig) cache.Cache {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	return cache.NewRedis(client)
}

// derivePrimaryAPIKey picks the single shared secret the auth gate
// compares incoming credentials against: the JWT_SECRET value, the same
// secret that signs ephemeral keys. When it is empty and auth is
// required, the gate has nothing to match and rejects every request — a
// misconfiguration, not an open gate.
func derivePrimaryAPIKey(cfg *config.AppConfig) string {
	return cfg.JWTSecret
}
