// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/gateway/internal/commons"
)

func TestValidateMimeAcceptsCanonicalOnly(t *testing.T) {
	assert.NoError(t, ValidateMime(CanonicalMimeType))
	err := ValidateMime("audio/wav")
	assert.True(t, commons.IsCode(err, commons.ErrValidation))
}

func TestValidateChunkRejectsUnalignedLength(t *testing.T) {
	err := ValidateChunk([]byte{0x01, 0x02, 0x03}, 0)
	assert.True(t, commons.IsCode(err, commons.ErrValidation))
}

func TestValidateChunkRejectsOversizedChunk(t *testing.T) {
	err := ValidateChunk(make([]byte, 10), 8)
	assert.True(t, commons.IsCode(err, commons.ErrValidation))
}

func TestValidateChunkAcceptsWithinBounds(t *testing.T) {
	assert.NoError(t, ValidateChunk(make([]byte, 8), 0))
}

func TestDecodeEncodeBase64ChunkRoundTrip(t *testing.T) {
	original := []byte{0x00, 0x01, 0xff, 0xfe}
	encoded := EncodeBase64Chunk(original)
	decoded, err := DecodeBase64Chunk(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeBase64ChunkRejectsMalformedInput(t *testing.T) {
	_, err := DecodeBase64Chunk("not-valid-base64!!")
	assert.True(t, commons.IsCode(err, commons.ErrValidation))
}

func TestDurationMsForOneSecondOfAudio(t *testing.T) {
	assert.Equal(t, float64(1000), DurationMs(BytesPerSecond))
}

func TestChunkSplitsIntoSampleAlignedPieces(t *testing.T) {
	buf := make([]byte, BytesPerSecond) // 1s of audio
	chunks := Chunk(buf, 100)           // 100ms pieces
	require.Len(t, chunks, 10)
	for _, c := range chunks {
		assert.Zero(t, len(c)%BytesPerSample)
	}
}

func TestChunkLastPieceMayBeShorter(t *testing.T) {
	bytesPerChunk := BytesPerSecond / 10 // 100ms
	buf := make([]byte, bytesPerChunk*2+500)
	chunks := Chunk(buf, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], bytesPerChunk)
	assert.Len(t, chunks[1], bytesPerChunk)
	assert.Len(t, chunks[2], 500)

	var total int
	for _, c := range chunks {
		total += len(c)
	}
	assert.Equal(t, len(buf), total)
}

func TestChunkEmptyOrZeroDurationReturnsNil(t *testing.T) {
	assert.Nil(t, Chunk(nil, 100))
	assert.Nil(t, Chunk([]byte{1, 2}, 0))
}
