// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package gemini implements the C7 Gemini-shaped realtime provider
// adapter over its Live API WebSocket (spec.md §4.7). Session config is
// applied at connect time; dynamic updates are best-effort.
package gemini

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/internal/realtime"
	"github.com/rapidaai/gateway/internal/vad"
)

const (
	connectTimeout = 15 * time.Second
	pingInterval   = 20 * time.Second
	outboundQueue  = 1000
)

// Config wires one Gemini-shaped realtime upstream.
type Config struct {
	WSURL  string
	APIKey string
}

type frame map[string]interface{}

// Adapter implements realtime.UpstreamAdapter over the Gemini Live API
// WebSocket, mirroring the connection/queue/readLoop shape of the
// OpenAI-shaped sibling adapter (both grounded on the teacher's
// websocketExecutor).
type Adapter struct {
	cfg    Config
	logger commons.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	queueMu sync.Mutex
	queue   []frame

	onMessage func(raw []byte)
	onError   func(err error)
	onClose   func()

	done chan struct{}
}

// New constructs an unconnected Adapter.
func New(logger commons.Logger, cfg Config) *Adapter {
	return &Adapter{cfg: cfg, logger: logger, done: make(chan struct{})}
}

// Connect dials the Live API WebSocket and sends the initial setup frame
// carrying the session configuration, since Gemini applies config at
// connect time (spec.md §4.7).
func (a *Adapter) Connect(ctx context.Context, sessionCfg realtime.SessionConfig) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	wsURL, err := url.Parse(a.cfg.WSURL)
	if err != nil {
		return commons.Wrap(commons.ErrInternal, "parsing gemini realtime url", err).WithProvider("gemini")
	}
	q := wsURL.Query()
	q.Set("key", a.cfg.APIKey)
	wsURL.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return commons.Wrap(commons.ErrProviderTransient, "connecting to gemini realtime", err).WithProvider("gemini")
	}
	conn.SetReadLimit(10 * 1024 * 1024)
	a.conn = conn

	go a.readLoop()
	go a.pingLoop()

	setup := map[string]interface{}{
		"model":              sessionCfg.Model,
		"realtimeInputConfig": vad.ToGemini(sessionCfg.VAD),
	}
	if sessionCfg.Prompt != "" {
		setup["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": sessionCfg.Prompt}},
		}
	}
	if err := a.writeFrame(frame{"setup": setup}); err != nil {
		return err
	}
	a.flushQueue()
	return nil
}

// SendSessionUpdate is best-effort for Gemini: config is normally fixed
// at connect, so this resends realtimeInputConfig as a client-content
// update (spec.md §4.7).
func (a *Adapter) SendSessionUpdate(cfg realtime.SessionConfig) error {
	return a.send(frame{
		"clientContent": map[string]interface{}{
			"realtimeInputConfig": vad.ToGemini(cfg.VAD),
		},
	})
}

// AppendAudioBase64 sends `sendRealtimeInput({audio: {data, mimeType}})`
// (spec.md §4.7).
func (a *Adapter) AppendAudioBase64(b64 string) error {
	return a.send(frame{
		"realtimeInput": map[string]interface{}{
			"audio": map[string]interface{}{"data": b64, "mimeType": "audio/pcm;rate=16000"},
		},
	})
}

// CommitAudio sends `sendClientContent({turns: [], turnComplete: true})`
// for manual VAD (spec.md §4.7).
func (a *Adapter) CommitAudio() error {
	return a.send(frame{
		"clientContent": map[string]interface{}{"turns": []interface{}{}, "turnComplete": true},
	})
}

// ClearAudio has no Gemini Live API equivalent; buffered audio is
// discarded implicitly on the next turn boundary.
func (a *Adapter) ClearAudio() error { return nil }

func (a *Adapter) send(f frame) error {
	if a.conn == nil {
		a.queueMu.Lock()
		if len(a.queue) >= outboundQueue {
			a.logger.Warnf("gemini realtime outbound queue full, dropping oldest frame")
			a.queue = a.queue[1:]
		}
		a.queue = append(a.queue, f)
		a.queueMu.Unlock()
		return nil
	}
	return a.writeFrame(f)
}

func (a *Adapter) flushQueue() {
	a.queueMu.Lock()
	pending := a.queue
	a.queue = nil
	a.queueMu.Unlock()
	for _, f := range pending {
		if err := a.writeFrame(f); err != nil {
			a.logger.Errorf("flushing queued gemini realtime frame: %v", err)
		}
	}
}

func (a *Adapter) writeFrame(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return commons.Wrap(commons.ErrInternal, "marshaling gemini realtime frame", err).WithProvider("gemini")
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if a.conn == nil {
		return commons.NewError(commons.ErrServiceUnavailable, "gemini realtime connection not open").WithProvider("gemini")
	}
	if err := a.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return commons.Wrap(commons.ErrProviderTransient, "writing gemini realtime frame", err).WithProvider("gemini")
	}
	return nil
}

func (a *Adapter) OnMessage(cb func(raw []byte)) { a.onMessage = cb }
func (a *Adapter) OnError(cb func(err error))    { a.onError = cb }
func (a *Adapter) OnClose(cb func())             { a.onClose = cb }

func (a *Adapter) readLoop() {
	for {
		select {
		case <-a.done:
			return
		default:
		}
		_, message, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if a.onClose != nil {
					a.onClose()
				}
				return
			}
			if a.onError != nil {
				a.onError(commons.Wrap(commons.ErrProviderTransient, "reading from gemini realtime", err).WithProvider("gemini"))
			}
			return
		}
		if a.onMessage != nil {
			a.onMessage(message)
		}
	}
}

func (a *Adapter) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.writeMu.Lock()
			if a.conn != nil {
				_ = a.conn.WriteMessage(websocket.PingMessage, nil)
			}
			a.writeMu.Unlock()
		}
	}
}

// Close terminates the upstream connection.
func (a *Adapter) Close() error {
	select {
	case <-a.done:
		return nil
	default:
		close(a.done)
	}
	if a.conn == nil {
		return nil
	}
	a.writeMu.Lock()
	_ = a.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	a.writeMu.Unlock()
	return a.conn.Close()
}
