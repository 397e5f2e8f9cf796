// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorSetsStatusCodeFromTaxonomy(t *testing.T) {
	err := NewError(ErrRateLimit, "too many requests")
	assert.Equal(t, 429, err.StatusCode)
	assert.Equal(t, ErrRateLimit, err.Code)
}

func TestOnlyProviderTransientIsRetryable(t *testing.T) {
	for code := range statusCodes {
		err := NewError(code, "x")
		want := code == ErrProviderTransient
		assert.Equal(t, want, err.Retryable(), "code %s", code)
	}
}

func TestWrapPreservesCauseAndUnwraps(t *testing.T) {
	cause := errors.New("upstream exploded")
	err := Wrap(ErrProviderFatal, "chat completion failed", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestAsEnvelopeClassifiesUnknownErrorsAsInternal(t *testing.T) {
	env := AsEnvelope(errors.New("boom"))
	assert.Equal(t, ErrInternal, env.Error.Code)
	assert.Equal(t, 500, env.Error.StatusCode)
}

func TestAsEnvelopePassesThroughGatewayError(t *testing.T) {
	ge := NewError(ErrModelNotFound, "no such model")
	env := AsEnvelope(ge)
	assert.Same(t, ge, env.Error)
}

func TestWithRetryAfterRoundTrips(t *testing.T) {
	err := NewError(ErrRateLimit, "slow down").WithRetryAfter(5 * time.Second)
	assert.Equal(t, 5*time.Second, err.RetryAfter())
}

func TestIsCode(t *testing.T) {
	err := NewError(ErrCircuitOpen, "open")
	assert.True(t, IsCode(err, ErrCircuitOpen))
	assert.False(t, IsCode(err, ErrInternal))
	assert.False(t, IsCode(errors.New("plain"), ErrCircuitOpen))
}
