// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package audio implements the PCM16 validation, chunking, and accounting
// utilities of spec.md §4.9 (C9). The gateway rejects audio it cannot
// serve natively rather than resampling it (spec.md §1 non-goals).
package audio

import (
	"encoding/base64"
	"fmt"

	"github.com/rapidaai/gateway/internal/commons"
)

// Canonical input format (spec.md §3): single-channel linear PCM16
// little-endian at 16000 Hz.
const (
	SampleRateHz   = 16000
	Channels       = 1
	BytesPerSample = 2
	BytesPerSecond = SampleRateHz * Channels * BytesPerSample

	// DefaultMaxChunkBytes bounds a single chunk to 32 KiB, about one
	// second of 16kHz mono PCM16 at BytesPerSecond (spec.md §3).
	DefaultMaxChunkBytes = 32 * 1024

	CanonicalMimeType = "audio/pcm;rate=16000"
)

// ErrResamplingNotImplemented is returned whenever the gateway is asked
// to convert audio to the canonical format instead of rejecting it.
// spec.md §1 treats automatic resampling as an explicit non-goal.
var ErrResamplingNotImplemented = commons.NewError(commons.ErrValidation,
	"resampling not implemented: input audio must already be mono PCM16 at 16000Hz")

// ValidateMime checks the three conditions spec.md §4.9 requires to all
// hold: PCM encoding, mono, and 16000Hz.
func ValidateMime(mimeType string) error {
	if mimeType != CanonicalMimeType {
		return commons.NewError(commons.ErrValidation,
			fmt.Sprintf("unsupported audio mime type %q, expected %q", mimeType, CanonicalMimeType))
	}
	return nil
}

// ValidateChunk checks a decoded PCM16 chunk is 2-byte sample aligned and
// does not exceed maxBytes. maxBytes <= 0 uses DefaultMaxChunkBytes.
func ValidateChunk(chunk []byte, maxBytes int) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkBytes
	}
	if len(chunk)%BytesPerSample != 0 {
		return commons.NewError(commons.ErrValidation, "invalid_audio_chunk: not sample-aligned")
	}
	if len(chunk) > maxBytes {
		return commons.NewError(commons.ErrValidation, "invalid_audio_chunk: exceeds max chunk size")
	}
	return nil
}

// DecodeBase64Chunk decodes a base64 audio chunk, surfacing a validation
// error distinct from a malformed-audio error (spec.md §4.6
// "invalid_audio_base64").
func DecodeBase64Chunk(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, commons.Wrap(commons.ErrValidation, "invalid_audio_base64", err)
	}
	return data, nil
}

// EncodeBase64Chunk is the inverse of DecodeBase64Chunk.
func EncodeBase64Chunk(chunk []byte) string {
	return base64.StdEncoding.EncodeToString(chunk)
}

// DurationMs computes the playback duration of a PCM16/16kHz/mono buffer
// in milliseconds from its byte length.
func DurationMs(byteLen int) float64 {
	return float64(byteLen) / float64(BytesPerSecond) * 1000
}

// Chunk splits a PCM16 buffer into pieces of durationMs length, aligned
// to 2-byte sample boundaries (spec.md §4.9). The final piece may be
// shorter than durationMs.
func Chunk(buf []byte, durationMs int) [][]byte {
	if durationMs <= 0 || len(buf) == 0 {
		return nil
	}
	bytesPerChunk := int(float64(durationMs) / 1000 * BytesPerSecond)
	bytesPerChunk -= bytesPerChunk % BytesPerSample
	if bytesPerChunk <= 0 {
		bytesPerChunk = BytesPerSample
	}

	var chunks [][]byte
	for start := 0; start < len(buf); start += bytesPerChunk {
		end := start + bytesPerChunk
		if end > len(buf) {
			end = len(buf)
		}
		chunks = append(chunks, buf[start:end])
	}
	return chunks
}
