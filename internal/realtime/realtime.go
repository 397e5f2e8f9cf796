// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package realtime implements the C6 session multiplexer: one WebSocket
// connection with a client, lazily bridged to one upstream realtime
// provider adapter (C7), with events passed through the C8 normalizer.
package realtime

import (
	"context"
	"time"

	"github.com/rapidaai/gateway/internal/vad"
)

// SessionState is the multiplexer state machine of spec.md §4.6.
type SessionState string

const (
	StateConnected   SessionState = "connected"
	StateConfigured  SessionState = "configured"
	StateUpstream    SessionState = "upstream_open"
	StateClosed      SessionState = "closed"
)

// SessionConfig is the client-configurable realtime session shape
// (session.update payload), patched in place across the session
// lifetime.
type SessionConfig struct {
	Provider string                 `json:"provider,omitempty"`
	Model    string                 `json:"model,omitempty"`
	Language string                 `json:"language,omitempty"`
	VAD      vad.Config             `json:"vad,omitempty"`
	Include  []string               `json:"include,omitempty"`
	Prompt   string                 `json:"prompt,omitempty"`
	Args     map[string]interface{} `json:"args,omitempty"`
}

// UnifiedEvent is the C8 normalized vocabulary every provider event is
// translated into before reaching the client (spec.md §4.8).
type UnifiedEvent struct {
	Type        string                 `json:"type"`
	Text        string                 `json:"text,omitempty"`
	Interrupted bool                   `json:"interrupted,omitempty"`
	Code        string                 `json:"code,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Provider    string                 `json:"provider,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
	Raw         map[string]interface{} `json:"-"`
}

// Unified event type names (spec.md §4.8 table).
const (
	EventTranscriptDelta = "transcript.delta"
	EventTranscriptDone  = "transcript.done"
	EventSpeechStarted   = "speech_started"
	EventSpeechStopped   = "speech_stopped"
	EventInterrupted     = "interrupted"
	EventUsage           = "usage"
	EventRateLimits      = "rate_limits.updated"
	EventError           = "error"
)

// UpstreamAdapter is the small canonical interface both realtime provider
// drivers implement (spec.md §4.7, C7). Implementations MUST tolerate
// pre-open sends by enqueueing (default capacity 1000, oldest evicted
// with a warning).
type UpstreamAdapter interface {
	// Connect establishes the upstream WebSocket within a 15s timeout,
	// flushes queued outbound messages, and starts a 20s keep-alive ping
	// where the provider supports it.
	Connect(ctx context.Context, cfg SessionConfig) error

	// SendSessionUpdate translates cfg via the VAD mapper and forwards a
	// provider-shaped session configuration frame.
	SendSessionUpdate(cfg SessionConfig) error

	AppendAudioBase64(b64 string) error
	CommitAudio() error
	ClearAudio() error

	// OnMessage registers the raw-event callback. Inbound events are not
	// buffered: one that arrives while no callback is registered is dropped.
	OnMessage(cb func(raw []byte))
	OnError(cb func(err error))
	OnClose(cb func())

	Close() error
}

// AdapterFactory constructs an UpstreamAdapter for one provider; the
// multiplexer never imports a concrete adapter package directly, so the
// realtime.openai/realtime.gemini packages avoid an import cycle back
// into this package.
type AdapterFactory func() UpstreamAdapter

// ProviderResolver decides which provider serves a session when the
// client did not specify one (spec.md §4.6 "Provider resolution"),
// resolving via the realtime model map first, then prefix heuristics.
// The resolution is fixed for the session lifetime once made.
type ProviderResolver func(cfg SessionConfig) (provider string, ok bool)

// Config tunes multiplexer-wide defaults (spec.md §4.6, §5).
type Config struct {
	OutboundQueueSize int           // default 1000
	InboundQueueSize  int           // default 1000
	IdleSweepInterval time.Duration // default 15s
	MaxIdle           time.Duration // default 60s
	ConnectTimeout    time.Duration // default 15s
}

func (c Config) withDefaults() Config {
	if c.OutboundQueueSize <= 0 {
		c.OutboundQueueSize = 1000
	}
	if c.InboundQueueSize <= 0 {
		c.InboundQueueSize = 1000
	}
	if c.IdleSweepInterval <= 0 {
		c.IdleSweepInterval = 15 * time.Second
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = 60 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	return c
}
