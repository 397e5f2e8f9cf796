// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package openai

import (
	"errors"
	"testing"

	oai "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"

	"github.com/rapidaai/gateway/internal/commons"
	"github.com/rapidaai/gateway/pkg/types"
)

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, types.FinishLength, mapFinishReason("length"))
	assert.Equal(t, types.FinishContentFilter, mapFinishReason("content_filter"))
	assert.Equal(t, types.FinishToolCalls, mapFinishReason("tool_calls"))
	assert.Equal(t, types.FinishStop, mapFinishReason("stop"))
	assert.Equal(t, types.FinishStop, mapFinishReason("unknown_reason"))
}

func TestClassifyErrorMapsStatusCodesToTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		code   commons.ErrorCode
	}{
		{401, commons.ErrAuthentication},
		{403, commons.ErrAuthentication},
		{404, commons.ErrModelNotFound},
		{429, commons.ErrRateLimit},
		{500, commons.ErrProviderTransient},
		{502, commons.ErrProviderTransient},
		{400, commons.ErrValidation},
	}
	for _, c := range cases {
		err := classifyError("openai", &oai.Error{StatusCode: c.status, Message: "boom"})
		assert.True(t, commons.IsCode(err, c.code), "status %d", c.status)
	}
}

func TestClassifyErrorFallsBackToTransientForNonAPIErrors(t *testing.T) {
	err := classifyError("openai", errors.New("connection reset"))
	assert.True(t, commons.IsCode(err, commons.ErrProviderTransient))
}

func TestClassifyErrorNilIsNil(t *testing.T) {
	assert.NoError(t, classifyError("openai", nil))
}

func TestGetCostInfoReturnsKnownCostOnly(t *testing.T) {
	a := &Adapter{costs: map[string]types.Cost{"gpt-4o": {InputCost: 5, OutputCost: 15}}}
	cost, ok := a.GetCostInfo("gpt-4o")
	assert.True(t, ok)
	assert.Equal(t, float64(5), cost.InputCost)

	_, ok = a.GetCostInfo("unknown-model")
	assert.False(t, ok)
}

func TestListSupportedModelsReturnsConfiguredModels(t *testing.T) {
	models := []types.ModelDescriptor{{ID: "gpt-4o", Provider: "openai"}}
	a := &Adapter{models: models}
	got, err := a.ListSupportedModels(nil)
	assert.NoError(t, err)
	assert.Equal(t, models, got)
}
