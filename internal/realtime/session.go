// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rapidaai/gateway/internal/audio"
	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/commons/metrics"
	"github.com/rapidaai/gateway/internal/vad"
)

// clientEvent is the discriminated-union wire shape of every client →
// gateway message (spec.md §4.6).
type clientEvent struct {
	Type    string         `json:"type"`
	Audio   string         `json:"audio,omitempty"`
	Session *sessionPatch  `json:"session,omitempty"`
}

// sessionPatch carries only the fields a client supplied on
// `session.update`; nil/zero fields leave the current config untouched.
type sessionPatch struct {
	Provider string                 `json:"provider,omitempty"`
	Model    string                 `json:"model,omitempty"`
	Language string                 `json:"language,omitempty"`
	VAD      *vad.Config            `json:"vad,omitempty"`
	Include  []string               `json:"include,omitempty"`
	Prompt   string                 `json:"prompt,omitempty"`
	Args     map[string]interface{} `json:"args,omitempty"`
}

func applyPatch(cfg *SessionConfig, p sessionPatch) {
	if p.Provider != "" {
		cfg.Provider = p.Provider
	}
	if p.Model != "" {
		cfg.Model = p.Model
	}
	if p.Language != "" {
		cfg.Language = p.Language
	}
	if p.VAD != nil {
		cfg.VAD = *p.VAD
	}
	if p.Include != nil {
		cfg.Include = p.Include
	}
	if p.Prompt != "" {
		cfg.Prompt = p.Prompt
	}
	if p.Args != nil {
		cfg.Args = p.Args
	}
}

// serverEvent is the {type, ...} envelope every gateway → client message
// carries (spec.md §4.6).
type serverEvent struct {
	Type        string                 `json:"type"`
	SessionID   string                 `json:"sessionId,omitempty"`
	Text        string                 `json:"text,omitempty"`
	Interrupted bool                   `json:"interrupted,omitempty"`
	Code        string                 `json:"code,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Provider    string                 `json:"provider,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// NormalizeFunc is the C8 normalizer, injected so this package never
// imports internal/realtime/normalize (which imports this package for
// UnifiedEvent), avoiding a cycle.
type NormalizeFunc func(provider string, raw []byte) []UnifiedEvent

// Session is one client WebSocket bridged to one lazily-connected
// upstream provider (C6, spec.md §4.6). Only the goroutine that calls Run
// reads the client socket; upstream callbacks and the idle sweep run on
// other goroutines, so session state is guarded by stateMu and client
// writes by writeMu. Close is safe to call from any goroutine.
type Session struct {
	ID     string
	logger commons.Logger
	conn   *websocket.Conn
	cfg    Config

	factories map[string]AdapterFactory
	resolver  ProviderResolver
	normalize NormalizeFunc

	writeMu sync.Mutex

	stateMu      sync.Mutex
	state        SessionState
	sessionCfg   SessionConfig
	provider     string
	upstream     UpstreamAdapter
	lastActivity time.Time
	bufferedMs   float64
	commitAt     time.Time
	gotFirstDelta bool
	gotDone       bool

	done chan struct{}
}

// NewSession constructs a session bound to an already-upgraded client
// WebSocket connection.
func NewSession(logger commons.Logger, conn *websocket.Conn, cfg Config, factories map[string]AdapterFactory, resolver ProviderResolver, normalize NormalizeFunc) *Session {
	return &Session{
		ID:           uuid.NewString(),
		logger:       logger,
		conn:         conn,
		cfg:          cfg.withDefaults(),
		factories:    factories,
		resolver:     resolver,
		normalize:    normalize,
		state:        StateConnected,
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}
}

// Run drives the session until the client disconnects or an idle timeout
// fires. It blocks the calling goroutine. An upstream error or close is
// reported to the client as an error event and does not end the session.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer s.destroy()
	s.sendServerEvent(serverEvent{Type: "session.created", SessionID: s.ID})

	go s.idleSweep(ctx)

	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.touch()

		if msgType == websocket.BinaryMessage {
			s.sendServerEvent(serverEvent{Type: EventError, Code: "binary_unsupported", Message: "binary frames are not supported on this socket"})
			continue
		}

		var evt clientEvent
		if err := json.Unmarshal(message, &evt); err != nil {
			s.sendServerEvent(serverEvent{Type: EventError, Code: "invalid_message", Message: err.Error()})
			continue
		}

		switch evt.Type {
		case "session.update":
			s.handleSessionUpdate(ctx, evt)
		case "input_audio.append":
			s.handleAudioAppend(ctx, evt)
		case "input_audio.commit":
			s.handleAudioCommit(ctx)
		case "input_audio.clear":
			s.handleAudioClear()
		}

		select {
		case <-s.done:
			return
		default:
		}
	}
}

func (s *Session) handleSessionUpdate(ctx context.Context, evt clientEvent) {
	s.stateMu.Lock()
	if evt.Session != nil {
		applyPatch(&s.sessionCfg, *evt.Session)
	}
	if s.state == StateConnected {
		s.state = StateConfigured
	}
	upstream := s.upstream
	cfg := s.sessionCfg
	s.stateMu.Unlock()

	if upstream != nil {
		if err := upstream.SendSessionUpdate(cfg); err != nil {
			s.logger.Errorf("forwarding session.update to upstream for session %s: %v", s.ID, err)
		}
	}
	s.sendServerEvent(serverEvent{Type: "session.updated"})
}

func (s *Session) handleAudioAppend(ctx context.Context, evt clientEvent) {
	if len(evt.Audio) > audio.DefaultMaxChunkBytes {
		s.sendServerEvent(serverEvent{Type: EventError, Code: "invalid_audio_chunk", Message: "invalid_audio_chunk: exceeds max chunk size"})
		return
	}
	chunk, err := audio.DecodeBase64Chunk(evt.Audio)
	if err != nil {
		s.sendServerEvent(serverEvent{Type: EventError, Code: "invalid_audio_base64", Message: err.Error()})
		return
	}
	if err := audio.ValidateChunk(chunk, 0); err != nil {
		s.sendServerEvent(serverEvent{Type: EventError, Code: "invalid_audio_chunk", Message: err.Error()})
		return
	}

	upstream, err := s.ensureUpstream(ctx)
	if err != nil {
		s.sendServerEvent(serverEvent{Type: EventError, Code: "upstream_unavailable", Message: err.Error()})
		return
	}

	s.stateMu.Lock()
	s.bufferedMs += audio.DurationMs(len(chunk))
	provider := s.provider
	s.stateMu.Unlock()
	metrics.RealtimeAudioSecondsTotal.WithLabelValues(provider).Add(audio.DurationMs(len(chunk)) / 1000)

	if err := upstream.AppendAudioBase64(evt.Audio); err != nil {
		s.logger.Errorf("forwarding audio chunk for session %s: %v", s.ID, err)
	}
}

func (s *Session) handleAudioCommit(ctx context.Context) {
	upstream, err := s.ensureUpstream(ctx)
	if err != nil {
		s.sendServerEvent(serverEvent{Type: EventError, Code: "upstream_unavailable", Message: err.Error()})
		return
	}
	s.stateMu.Lock()
	s.commitAt = time.Now()
	s.gotFirstDelta = false
	s.gotDone = false
	s.stateMu.Unlock()
	if err := upstream.CommitAudio(); err != nil {
		s.logger.Errorf("committing audio for session %s: %v", s.ID, err)
	}
}

func (s *Session) handleAudioClear() {
	s.stateMu.Lock()
	upstream := s.upstream
	s.bufferedMs = 0
	s.stateMu.Unlock()
	if upstream != nil {
		if err := upstream.ClearAudio(); err != nil {
			s.logger.Errorf("clearing audio for session %s: %v", s.ID, err)
		}
	}
}

// ensureUpstream lazily connects upstream on first audio activity
// (spec.md §4.6 "Lazy upstream connect").
func (s *Session) ensureUpstream(ctx context.Context) (UpstreamAdapter, error) {
	s.stateMu.Lock()
	if s.upstream != nil {
		up := s.upstream
		s.stateMu.Unlock()
		return up, nil
	}

	provider, ok := s.resolver(s.sessionCfg)
	if !ok {
		s.stateMu.Unlock()
		return nil, commons.NewError(commons.ErrModelNotFound, "cannot resolve a realtime provider for this session")
	}
	factory, ok := s.factories[provider]
	if !ok {
		s.stateMu.Unlock()
		return nil, commons.NewError(commons.ErrModelNotFound, "no realtime adapter registered for provider "+provider)
	}
	s.provider = provider
	cfg := s.sessionCfg
	s.stateMu.Unlock()

	upstream := factory()
	upstream.OnMessage(func(raw []byte) { s.handleUpstreamMessage(provider, raw) })
	upstream.OnError(func(err error) { s.handleUpstreamError(err) })
	upstream.OnClose(func() { s.handleUpstreamClose() })

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	if err := upstream.Connect(connectCtx, cfg); err != nil {
		return nil, err
	}

	s.stateMu.Lock()
	s.upstream = upstream
	s.state = StateUpstream
	s.stateMu.Unlock()
	metrics.RealtimeSessionsActive.WithLabelValues(provider).Inc()

	return upstream, nil
}

func (s *Session) handleUpstreamMessage(provider string, raw []byte) {
	events := s.normalize(provider, raw)
	for _, evt := range events {
		if evt.Type == EventTranscriptDelta {
			s.stateMu.Lock()
			first := !s.gotFirstDelta
			s.gotFirstDelta = true
			commitAt := s.commitAt
			s.stateMu.Unlock()
			if first && !commitAt.IsZero() {
				metrics.ObserveRequest("realtime_transcription", provider, s.sessionCfg.Model, "first_delta", time.Since(commitAt))
			}
		}
		if evt.Type == EventTranscriptDone {
			s.stateMu.Lock()
			s.gotDone = true
			s.stateMu.Unlock()
		}
		metrics.RealtimeTranscriptEventsTotal.WithLabelValues(provider, evt.Type).Inc()
		s.sendServerEvent(serverEvent{
			Type: evt.Type, Text: evt.Text, Interrupted: evt.Interrupted,
			Code: evt.Code, Message: evt.Message, Provider: evt.Provider, Details: evt.Details,
		})
	}
}

func (s *Session) handleUpstreamError(err error) {
	s.logger.Errorf("realtime upstream error for session %s: %v", s.ID, err)
	s.sendServerEvent(serverEvent{Type: EventError, Code: "upstream_error", Message: err.Error()})
}

func (s *Session) handleUpstreamClose() {
	s.stateMu.Lock()
	gotDone := s.gotDone
	s.stateMu.Unlock()
	if !gotDone {
		s.sendServerEvent(serverEvent{Type: EventError, Code: "upstream_closed", Message: "upstream connection closed"})
	}
}

func (s *Session) idleSweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IdleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.stateMu.Lock()
			idle := time.Since(s.lastActivity)
			s.stateMu.Unlock()
			if idle > s.cfg.MaxIdle {
				s.sendServerEvent(serverEvent{Type: EventError, Code: "idle_timeout"})
				s.Close()
				return
			}
		}
	}
}

func (s *Session) touch() {
	s.stateMu.Lock()
	s.lastActivity = time.Now()
	s.stateMu.Unlock()
}

func (s *Session) sendServerEvent(evt serverEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close destroys the session: upstream adapter and client socket.
func (s *Session) Close() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}
	s.destroy()
}

func (s *Session) destroy() {
	s.stateMu.Lock()
	upstream := s.upstream
	provider := s.provider
	s.state = StateClosed
	s.upstream = nil
	s.stateMu.Unlock()

	if upstream != nil {
		if err := upstream.Close(); err != nil {
			s.logger.Errorf("closing upstream for session %s: %v", s.ID, err)
		}
		metrics.RealtimeSessionsActive.WithLabelValues(provider).Dec()
	}
	_ = s.conn.Close()
}
