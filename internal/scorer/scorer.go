// Package scorer implements the quality scorer of spec.md §4.5: it turns a
// drafter's ModelResponse into a confidence q in [0,1] plus a provenance
// tag, following the hard-signal -> length-heuristic -> finish-reason ->
// logprob-blend -> optional-semantic-multiplier recipe. The
// try-native-then-fall-back-to-estimate shape for logprob confidence is
// grounded on rand-recurse's hallucination VerifierBackend idiom.
package scorer

import (
	"math"
	"strings"

	"github.com/jordanhubbard/cascadeflow/internal/providers"
)

// Provenance names which signal ultimately produced q.
type Provenance string

const (
	ProvenanceLogprobs Provenance = "logprobs"
	ProvenanceSemantic Provenance = "semantic"
	ProvenanceHeuristic Provenance = "heuristic"
	ProvenanceBlend    Provenance = "blend"
)

var uncertaintyPhrases = []string{
	"i don't know", "i cannot", "i can't", "i'm not sure", "unclear", "not confident",
}

// SemanticSimilarity is the optional collaborator that scores how well a
// response answers the original query by embedding similarity (spec.md
// §4.5 step 5). Implementations return ok=false when unconfigured.
type SemanticSimilarity func(query, response string) (similarity float64, ok bool)

// Score computes q and its provenance for one drafter response.
func Score(query string, resp *providers.ModelResponse, temperature float64, semantic SemanticSimilarity) (float64, Provenance) {
	lower := strings.ToLower(resp.Content)

	// 1. Hard signals first.
	if resp.Content == "" {
		return 0.1, ProvenanceHeuristic
	}
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			return 0.3, ProvenanceHeuristic
		}
	}

	// 2. Length heuristic.
	q := lengthHeuristic(len(resp.Content))

	// 3. finish_reason bonus/penalty.
	q = applyFinishReason(q, resp.FinishReason)

	provenance := ProvenanceHeuristic

	// 4. Logprob-based confidence, blended equally with the heuristic when
	// present (Open Question 1: the source blends the two equally).
	if len(resp.Logprobs) > 0 {
		qLP := meanExp(resp.Logprobs)
		q = (q + qLP) / 2
		if resp.HasLogprobs {
			provenance = ProvenanceLogprobs
		} else {
			provenance = ProvenanceBlend
		}
	}

	// 5. Semantic similarity multiplier (optional collaborator).
	if semantic != nil {
		if sim, ok := semantic(query, resp.Content); ok {
			q = q * (0.5 + 0.5*sim)
			provenance = ProvenanceSemantic
		}
	}

	return clamp(0, 1, q), provenance
}

func lengthHeuristic(n int) float64 {
	switch {
	case n < 20:
		return 0.70
	case n < 100:
		return 0.80
	case n < 300:
		return 0.85
	default:
		return 0.90
	}
}

func applyFinishReason(q float64, finishReason string) float64 {
	switch finishReason {
	case "stop", "end_turn":
		return math.Min(q+0.4, 1.0)
	case "length", "max_tokens":
		return math.Max(q-0.1, 0.5)
	case "content_filter":
		return 0.30
	default:
		return q
	}
}

func meanExp(logprobs []float64) float64 {
	sum := 0.0
	for _, lp := range logprobs {
		sum += math.Exp(lp)
	}
	return sum / float64(len(logprobs))
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Accepted reports whether q clears the effective threshold (spec.md §4.5:
// "accepted iff q >= adaptive_threshold(domain, base=route.threshold)").
func Accepted(q, effectiveThreshold float64) bool {
	return q >= effectiveThreshold
}
