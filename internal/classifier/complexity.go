package classifier

import (
	"regexp"
	"strings"
)

// complexity feature weights (spec.md §4.2: "each feature contributes
// weighted points; the sum is banded into the 5 levels").
const (
	wWordCountPerUnit  = 0.15 // per word, capped
	wWordCountCap      = 3.0
	wCodeFence         = 1.5
	wEnumeration       = 0.5
	wQuestionMark      = 0.2
	wMultiStepVerb     = 1.0
	wMultiStepVerbCap  = 2.0
	wReasoningVerb     = 1.5
	wReasoningVerbCap  = 3.0
	wParenDepth        = 0.5
)

// complexityBandEdges are the upper-exclusive boundaries between
// trivial|simple|moderate|hard|expert on the additive feature score.
var complexityBandEdges = []float64{1.0, 2.5, 4.5, 7.0}

var (
	codeFenceRe    = regexp.MustCompile("```")
	enumerationRe  = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-*•])\s+`)
	questionMarkRe = regexp.MustCompile(`\?`)
)

var multiStepConnectives = []string{"first", "then", "finally", "next", "after that", "afterwards"}
var reasoningVerbs = []string{"derive", "prove", "compare", "analyze", "analyse", "evaluate", "justify", "explain why", "demonstrate that"}

// ClassifyComplexity scores a query's difficulty as a pure function of its
// text (spec.md §4.2).
func ClassifyComplexity(query string) ComplexityResult {
	score := complexityFeatureScore(query)
	level, confidence := bandComplexity(score)
	return ComplexityResult{Level: level, Confidence: confidence, Score: score}
}

func complexityFeatureScore(query string) float64 {
	lower := strings.ToLower(query)
	words := len(strings.Fields(query))

	score := 0.0
	score += min(float64(words)/10.0*wWordCountPerUnit*10, wWordCountCap)
	score += float64(len(codeFenceRe.FindAllString(query, -1))/2) * wCodeFence
	score += float64(len(enumerationRe.FindAllString(query, -1))) * wEnumeration
	score += float64(len(questionMarkRe.FindAllString(query, -1))) * wQuestionMark
	score += min(countMatches(lower, multiStepConnectives)*wMultiStepVerb, wMultiStepVerbCap)
	score += min(countMatches(lower, reasoningVerbs)*wReasoningVerb, wReasoningVerbCap)
	score += float64(maxParenDepth(query)) * wParenDepth

	return score
}

func countMatches(lower string, phrases []string) float64 {
	count := 0.0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			count++
		}
	}
	return count
}

func maxParenDepth(s string) int {
	depth, max := 0, 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
			if depth > max {
				max = depth
			}
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	return max
}

// bandComplexity maps an additive score onto the 5-level ordinal and
// computes confidence as 1 - distance_to_band_edge/band_width. Ties at a
// band edge break toward the lower level (the edge itself belongs to the
// band below it).
func bandComplexity(score float64) (Complexity, float64) {
	levels := []Complexity{ComplexityTrivial, ComplexitySimple, ComplexityModerate, ComplexityHard, ComplexityExpert}

	idx := len(complexityBandEdges)
	for i, edge := range complexityBandEdges {
		if score <= edge {
			idx = i
			break
		}
	}
	level := levels[idx]

	lower := 0.0
	if idx > 0 {
		lower = complexityBandEdges[idx-1]
	}
	upper := lower + 2.0 // replaced below: the band's upper edge, or width 2.5 for the open-ended top band
	if idx < len(complexityBandEdges) {
		upper = complexityBandEdges[idx]
	} else if idx > 0 {
		upper = complexityBandEdges[idx-1] + 2.5
	}
	width := upper - lower
	if width <= 0 {
		width = 1.0
	}
	mid := lower + width/2
	distanceToEdge := width/2 - absf(score-mid)
	confidence := 1 - distanceToEdge/width
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return level, confidence
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
