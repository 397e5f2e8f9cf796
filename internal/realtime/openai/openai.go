// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package openai implements the C7 OpenAI-shaped realtime provider
// adapter: a WebSocket with bearer auth and a realtime-version header
// (spec.md §4.7).
package openai

import (
	"context"
	"encoding/json"
	"net/http"
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

// Config wires one OpenAI-shaped realtime upstream.
type Config struct {
	WSURL  string
	APIKey string
}

// frame is the {type, ...} envelope every OpenAI realtime message carries.
type frame map[string]interface{}

// Adapter implements realtime.UpstreamAdapter for the OpenAI-shaped
// realtime transcription API, grounded on the teacher's
// websocketExecutor connection/listener/writeMu pattern.
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

// Connect dials the upstream WebSocket within a 15s timeout, flushes any
// queued outbound frames, and starts keep-alive pings (spec.md §4.7).
func (a *Adapter) Connect(ctx context.Context, sessionCfg realtime.SessionConfig) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+a.cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	wsURL, err := url.Parse(a.cfg.WSURL)
	if err != nil {
		return commons.Wrap(commons.ErrInternal, "parsing openai realtime url", err).WithProvider("openai")
	}
	if sessionCfg.Model != "" {
		q := wsURL.Query()
		q.Set("model", sessionCfg.Model)
		wsURL.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL.String(), headers)
	if err != nil {
		return commons.Wrap(commons.ErrProviderTransient, "connecting to openai realtime", err).WithProvider("openai")
	}
	conn.SetReadLimit(10 * 1024 * 1024)
	a.conn = conn

	go a.readLoop()
	go a.pingLoop()

	if err := a.SendSessionUpdate(sessionCfg); err != nil {
		return err
	}
	a.flushQueue()
	return nil
}

// SendSessionUpdate translates cfg via the VAD mapper and sends a
// `transcription_session.update` frame (spec.md §4.7).
func (a *Adapter) SendSessionUpdate(cfg realtime.SessionConfig) error {
	session := map[string]interface{}{
		"input_audio_format": "pcm16",
	}
	if cfg.Language != "" {
		session["input_audio_transcription"] = map[string]interface{}{"language": cfg.Language}
	}
	if v := vad.ToOpenAI(cfg.VAD); v != nil {
		session["turn_detection"] = v
	} else {
		session["turn_detection"] = nil
	}
	if len(cfg.Include) > 0 {
		session["include"] = cfg.Include
	}
	if cfg.Prompt != "" {
		session["input_audio_transcription"] = map[string]interface{}{"prompt": cfg.Prompt}
	}
	return a.send(frame{"type": "transcription_session.update", "session": session})
}

// AppendAudioBase64 sends `input_audio_buffer.append` (spec.md §4.7).
func (a *Adapter) AppendAudioBase64(b64 string) error {
	return a.send(frame{"type": "input_audio_buffer.append", "audio": b64})
}

// CommitAudio sends `input_audio_buffer.commit` (spec.md §4.7).
func (a *Adapter) CommitAudio() error {
	return a.send(frame{"type": "input_audio_buffer.commit"})
}

// ClearAudio sends `input_audio_buffer.clear` (spec.md §4.7).
func (a *Adapter) ClearAudio() error {
	return a.send(frame{"type": "input_audio_buffer.clear"})
}

// send writes immediately if connected, otherwise enqueues (bounded,
// oldest evicted with a warning — spec.md §4.7 "tolerate pre-open sends").
func (a *Adapter) send(f frame) error {
	if a.conn == nil {
		a.queueMu.Lock()
		if len(a.queue) >= outboundQueue {
			a.logger.Warnf("openai realtime outbound queue full, dropping oldest frame")
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
			a.logger.Errorf("flushing queued openai realtime frame: %v", err)
		}
	}
}

func (a *Adapter) writeFrame(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return commons.Wrap(commons.ErrInternal, "marshaling openai realtime frame", err).WithProvider("openai")
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if a.conn == nil {
		return commons.NewError(commons.ErrServiceUnavailable, "openai realtime connection not open").WithProvider("openai")
	}
	if err := a.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return commons.Wrap(commons.ErrProviderTransient, "writing openai realtime frame", err).WithProvider("openai")
	}
	return nil
}

// OnMessage registers the raw-event callback.
func (a *Adapter) OnMessage(cb func(raw []byte)) { a.onMessage = cb }

// OnError registers the error callback.
func (a *Adapter) OnError(cb func(err error)) { a.onError = cb }

// OnClose registers the close callback.
func (a *Adapter) OnClose(cb func()) { a.onClose = cb }

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
				a.onError(commons.Wrap(commons.ErrProviderTransient, "reading from openai realtime", err).WithProvider("openai"))
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

// Close terminates the upstream connection (spec.md §4.7).
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
