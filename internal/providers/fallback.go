package providers

import (
	"math"
	"strings"
)

// EstimateTokens splits text on whitespace and punctuation runs, the
// deterministic word/punctuation split spec.md §4.1 requires when a back
// end reports no token usage.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t'
	})
	count := 0
	for _, f := range fields {
		count++
		// Trailing punctuation counts as a separate token, same as a
		// typical BPE tokenizer would split it.
		trimmed := strings.TrimRight(f, ".,!?;:\"')]}")
		if trimmed != f && trimmed != "" {
			count++
		}
	}
	return count
}

// FillFallbackLogprobs synthesizes logprobs/top_logprobs for a response
// whose back end does not natively report them (§4.1): confidence
// c = clamp(0.3, 0.95, base*(1.5-T)), logprob = ln(c), and a single
// top-1 alternative per token so the arrays stay equal length with the
// actual token occupying the top slot.
func FillFallbackLogprobs(resp *ModelResponse, temperature float64) {
	if resp.HasLogprobs || resp.Content == "" {
		return
	}
	const base = 0.75
	c := base * (1.5 - temperature)
	if c < 0.3 {
		c = 0.3
	}
	if c > 0.95 {
		c = 0.95
	}
	logprob := math.Log(c)

	tokens := strings.Fields(resp.Content)
	if len(tokens) == 0 {
		tokens = []string{resp.Content}
	}
	resp.Tokens_ = tokens
	resp.Logprobs = make([]float64, len(tokens))
	resp.TopLogprobs = make([]map[string]float64, len(tokens))
	for i, tok := range tokens {
		resp.Logprobs[i] = logprob
		resp.TopLogprobs[i] = map[string]float64{tok: logprob}
	}
	resp.HasLogprobs = false
	resp.Estimated = true
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["has_logprobs"] = false
	resp.Metadata["estimated"] = true
}

// BlendedCost computes cost from a per-1K-token blended rate when the back
// end does not split prompt/completion pricing.
func BlendedCost(promptTokens, completionTokens int, ratePer1K float64) float64 {
	total := promptTokens + completionTokens
	return (float64(total) / 1000.0) * ratePer1K
}

// SplitCost computes cost from separate input/output per-1K rates.
func SplitCost(promptTokens, completionTokens int, inputPer1K, outputPer1K float64) float64 {
	return (float64(promptTokens)/1000.0)*inputPer1K + (float64(completionTokens)/1000.0)*outputPer1K
}
