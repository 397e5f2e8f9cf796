// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package normalize implements the C8 pure event normalizer: provider
// wire events in, unified events out. Normalize never throws; unknown
// events yield an empty slice (spec.md §4.8).
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/rapidaai/gateway/internal/realtime"
)

// Normalize translates one raw provider event into zero or more unified
// events (spec.md §4.8). provider is "openai" or "gemini" (prefix-matched,
// case-insensitive, so "openai-realtime" etc. also route correctly).
func Normalize(provider string, raw []byte) []realtime.UnifiedEvent {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}

	switch {
	case strings.HasPrefix(strings.ToLower(provider), "openai"):
		return normalizeOpenAI(generic)
	case strings.HasPrefix(strings.ToLower(provider), "gemini"):
		return normalizeGemini(generic)
	default:
		return nil
	}
}

func normalizeOpenAI(event map[string]interface{}) []realtime.UnifiedEvent {
	typ, _ := event["type"].(string)
	switch typ {
	case "conversation.item.input_audio_transcription.delta":
		text, _ := event["delta"].(string)
		return []realtime.UnifiedEvent{{Type: realtime.EventTranscriptDelta, Text: text, Raw: event}}

	case "conversation.item.input_audio_transcription.completed":
		text, _ := event["transcript"].(string)
		return []realtime.UnifiedEvent{{Type: realtime.EventTranscriptDone, Text: text, Raw: event}}

	case "input_audio_buffer.speech_started":
		return []realtime.UnifiedEvent{{Type: realtime.EventSpeechStarted, Raw: event}}

	case "input_audio_buffer.speech_stopped":
		return []realtime.UnifiedEvent{{Type: realtime.EventSpeechStopped, Raw: event}}

	case "rate_limits.updated":
		return []realtime.UnifiedEvent{{Type: realtime.EventRateLimits, Details: asDetails(event), Raw: event}}

	case "error":
		return []realtime.UnifiedEvent{openaiError(event)}

	default:
		return nil
	}
}

func openaiError(event map[string]interface{}) realtime.UnifiedEvent {
	code := "provider_error"
	message := ""
	if errObj, ok := event["error"].(map[string]interface{}); ok {
		if c, ok := errObj["code"].(string); ok && c != "" {
			code = c
		}
		if m, ok := errObj["message"].(string); ok {
			message = m
		}
	}
	return realtime.UnifiedEvent{Type: realtime.EventError, Code: code, Message: message, Provider: "openai", Raw: event}
}

func normalizeGemini(event map[string]interface{}) []realtime.UnifiedEvent {
	var out []realtime.UnifiedEvent

	content := serverContent(event)
	if content != nil {
		if text, ok := content["inputTranscription"].(map[string]interface{}); ok {
			if t, ok := text["text"].(string); ok && t != "" {
				out = append(out, realtime.UnifiedEvent{
					Type: realtime.EventTranscriptDelta, Text: t,
					Meta: map[string]interface{}{"source": "input"}, Raw: event,
				})
			}
		}
		if texts, ok := content["inputTranscriptions"].([]interface{}); ok {
			for _, entry := range texts {
				if m, ok := entry.(map[string]interface{}); ok {
					if t, ok := m["text"].(string); ok && t != "" {
						out = append(out, realtime.UnifiedEvent{
							Type: realtime.EventTranscriptDelta, Text: t,
							Meta: map[string]interface{}{"source": "input"}, Raw: event,
						})
					}
				}
			}
		}

		if modelTurn, ok := content["modelTurn"].(map[string]interface{}); ok {
			if text := concatModelTurnText(modelTurn); text != "" {
				out = append(out, realtime.UnifiedEvent{
					Type: realtime.EventTranscriptDelta, Text: text,
					Meta: map[string]interface{}{"source": "model"}, Raw: event,
				})
			}
		}

		if done, ok := content["turnComplete"].(bool); ok && done {
			out = append(out, realtime.UnifiedEvent{Type: realtime.EventTranscriptDone, Raw: event})
		}

		if interrupted, ok := content["interrupted"].(bool); ok {
			out = append(out, realtime.UnifiedEvent{Type: realtime.EventInterrupted, Interrupted: interrupted, Raw: event})
		}
	}

	if usage, ok := event["usageMetadata"].(map[string]interface{}); ok {
		out = append(out, realtime.UnifiedEvent{Type: realtime.EventUsage, Details: usage, Raw: event})
	}

	if errObj, ok := event["error"].(map[string]interface{}); ok {
		message, _ := errObj["message"].(string)
		out = append(out, realtime.UnifiedEvent{Type: realtime.EventError, Code: "provider_error", Message: message, Provider: "gemini", Raw: event})
	}

	return out
}

// serverContent reads either "serverContent" or "realtimeServerContent",
// whichever the Gemini-shaped event carries (spec.md §4.8).
func serverContent(event map[string]interface{}) map[string]interface{} {
	if c, ok := event["serverContent"].(map[string]interface{}); ok {
		return c
	}
	if c, ok := event["realtimeServerContent"].(map[string]interface{}); ok {
		return c
	}
	return nil
}

func concatModelTurnText(modelTurn map[string]interface{}) string {
	parts, ok := modelTurn["parts"].([]interface{})
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, p := range parts {
		if part, ok := p.(map[string]interface{}); ok {
			if t, ok := part["text"].(string); ok {
				sb.WriteString(t)
			}
		}
	}
	return sb.String()
}

func asDetails(event map[string]interface{}) map[string]interface{} {
	if details, ok := event["rate_limits"]; ok {
		if m, ok := details.(map[string]interface{}); ok {
			return m
		}
	}
	return event
}
