// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package realtime

import (
	"context"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/gateway/internal/commons"
)

// Manager owns the realtime provider factories and spawns one Session
// per upgraded client WebSocket (spec.md §4.6). It holds no per-session
// state itself — each Session is confined to its own goroutine per
// spec.md §5.
type Manager struct {
	logger    commons.Logger
	cfg       Config
	factories map[string]AdapterFactory
	modelMap  map[string]string // model id -> provider, for resolution
	normalize NormalizeFunc
}

// NewManager constructs a Manager. modelMap maps realtime model IDs to
// the provider that serves them (spec.md §4.6 "Provider resolution").
func NewManager(logger commons.Logger, cfg Config, factories map[string]AdapterFactory, modelMap map[string]string, normalize NormalizeFunc) *Manager {
	return &Manager{
		logger:    logger,
		cfg:       cfg.withDefaults(),
		factories: factories,
		modelMap:  modelMap,
		normalize: normalize,
	}
}

// Resolve implements ProviderResolver: prefer an explicit client choice,
// then the model map, then a prefix heuristic over the known providers
// (spec.md §4.6).
func (m *Manager) Resolve(cfg SessionConfig) (string, bool) {
	if cfg.Provider != "" {
		if _, ok := m.factories[cfg.Provider]; ok {
			return cfg.Provider, true
		}
	}
	if provider, ok := m.modelMap[cfg.Model]; ok {
		if _, ok := m.factories[provider]; ok {
			return provider, true
		}
	}
	lowerModel := strings.ToLower(cfg.Model)
	for provider := range m.factories {
		if strings.HasPrefix(lowerModel, provider) {
			return provider, true
		}
	}
	if len(m.factories) == 1 {
		for provider := range m.factories {
			return provider, true
		}
	}
	return "", false
}

// Serve runs one session to completion over an already-upgraded client
// WebSocket connection. It blocks until the session ends.
func (m *Manager) Serve(ctx context.Context, conn *websocket.Conn) {
	session := NewSession(m.logger, conn, m.cfg, m.factories, m.Resolve, m.normalize)
	session.Run(ctx)
}
