package providers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Greater(t, EstimateTokens("hello world, how are you?"), 0)
}

func TestFillFallbackLogprobsClampsConfidence(t *testing.T) {
	resp := &ModelResponse{Content: "yes it is correct"}
	FillFallbackLogprobs(resp, 2.0) // high temperature should clamp to floor

	require.True(t, resp.Estimated)
	require.False(t, resp.HasLogprobs)
	require.Len(t, resp.Logprobs, len(resp.Tokens_))
	require.Len(t, resp.TopLogprobs, len(resp.Tokens_))

	c := math.Exp(resp.Logprobs[0])
	assert.InDelta(t, 0.3, c, 1e-9)
	assert.Equal(t, false, resp.Metadata["has_logprobs"])
	assert.Equal(t, true, resp.Metadata["estimated"])
}

func TestFillFallbackLogprobsSkipsWhenAlreadyPresent(t *testing.T) {
	resp := &ModelResponse{Content: "hi", HasLogprobs: true, Logprobs: []float64{-0.1}}
	FillFallbackLogprobs(resp, 0.5)
	assert.Len(t, resp.Logprobs, 1, "existing logprobs must not be overwritten")
}

func TestSplitCostAndBlendedCost(t *testing.T) {
	assert.InDelta(t, 0.003, SplitCost(1000, 1000, 0.001, 0.002), 1e-9)
	assert.InDelta(t, 0.002, BlendedCost(1000, 1000, 0.001), 1e-9)
	assert.Equal(t, 0.0, BlendedCost(0, 0, 0.001))
}
