package scorer

import (
	"math"
	"testing"

	"github.com/jordanhubbard/cascadeflow/internal/providers"
	"github.com/stretchr/testify/assert"
)

func TestScoreEmptyContentIsHardFloor(t *testing.T) {
	q, p := Score("q", &providers.ModelResponse{Content: ""}, 0.5, nil)
	assert.Equal(t, 0.1, q)
	assert.Equal(t, ProvenanceHeuristic, p)
}

func TestScoreUncertaintyPhrase(t *testing.T) {
	q, _ := Score("q", &providers.ModelResponse{Content: "I'm not sure about that."}, 0.5, nil)
	assert.Equal(t, 0.3, q)
}

func TestScoreLengthBandsAndFinishReason(t *testing.T) {
	resp := &providers.ModelResponse{Content: strRepeat("a", 50), FinishReason: "stop"}
	q, _ := Score("q", resp, 0.5, nil)
	assert.Equal(t, 1.0, q, "0.80 length band + 0.4 stop bonus clamps to the 1.0 ceiling")
}

func TestScoreContentFilterClamps(t *testing.T) {
	resp := &providers.ModelResponse{Content: "something long enough to pass length bands nicely here", FinishReason: "content_filter"}
	q, _ := Score("q", resp, 0.5, nil)
	assert.Equal(t, 0.30, q)
}

func TestScoreBlendsLogprobs(t *testing.T) {
	resp := &providers.ModelResponse{
		Content:     "a reasonably long response body for banding purposes here",
		Logprobs:    []float64{math.Log(0.9), math.Log(0.8)},
		HasLogprobs: true,
	}
	q, p := Score("q", resp, 0.5, nil)
	assert.Equal(t, ProvenanceLogprobs, p)
	assert.Greater(t, q, 0.0)
}

func TestScoreSemanticMultiplier(t *testing.T) {
	resp := &providers.ModelResponse{Content: "a reasonably long response body for banding purposes here"}
	semantic := func(query, response string) (float64, bool) { return 1.0, true }
	q, p := Score("q", resp, 0.5, semantic)
	assert.Equal(t, ProvenanceSemantic, p)
	assert.Greater(t, q, 0.0)
}

func TestAccepted(t *testing.T) {
	assert.True(t, Accepted(0.7, 0.7))
	assert.False(t, Accepted(0.69, 0.7))
}

func strRepeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
