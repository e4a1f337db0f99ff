package classifier

import (
	"regexp"
	"strings"
)

// Tool-call complexity signal weights (spec.md §4.2: 8 signals banded into
// the same 5-level ordinal as query complexity).
const (
	wToolCount        = 0.8
	wToolCountCap     = 2.5
	wParamFanOut      = 0.3
	wParamFanOutCap   = 1.5
	wChainingVerb     = 1.0
	wConditionalVerb  = 0.8
	wAggregationVerb  = 0.8
	wMultiEntity      = 0.5
	wMultiEntityCap   = 1.5
	wMultiStepNumber  = 0.6
	wPriorToolOutput  = 1.0
)

var toolChainingVerbs = []string{"then", "after that", "followed by", "next"}
var toolConditionalVerbs = []string{"if", "otherwise", "unless", "depending on"}
var toolAggregationVerbs = []string{"compare", "combine", "merge", "aggregate", "cross-reference"}
var priorOutputMarkers = []string{"from the result", "using that output", "with the previous result", "based on that tool"}

var numberedStepRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)
var multiEntityRe = regexp.MustCompile(`\band\b`)

// ToolRequest describes the shape of a tool request, used purely
// to compute the banded score — no network calls.
type ToolRequest struct {
	Tools      []ToolParams
	Query      string
	HasHistory bool // prior turns reference earlier tool output
}

// ToolParams is the minimal shape the tool-complexity scorer needs from a
// tool schema: its parameter count.
type ToolParams struct {
	Name          string
	ParamCount    int
}

// ClassifyToolComplexity scores the difficulty of satisfying a tool-using
// request. Only called when req.Tools is non-empty (spec.md §3: the result
// is nil otherwise).
func ClassifyToolComplexity(req ToolRequest) ToolComplexityResult {
	lower := strings.ToLower(req.Query)

	score := 0.0
	score += min(float64(len(req.Tools))*wToolCount, wToolCountCap)

	totalParams := 0
	for _, t := range req.Tools {
		totalParams += t.ParamCount
	}
	score += min(float64(totalParams)*wParamFanOut, wParamFanOutCap)

	if containsAny(lower, toolChainingVerbs) {
		score += wChainingVerb
	}
	if containsAny(lower, toolConditionalVerbs) {
		score += wConditionalVerb
	}
	if containsAny(lower, toolAggregationVerbs) {
		score += wAggregationVerb
	}
	score += min(float64(len(multiEntityRe.FindAllString(req.Query, -1)))*wMultiEntity, wMultiEntityCap)
	if len(numberedStepRe.FindAllString(req.Query, -1)) > 1 {
		score += wMultiStepNumber
	}
	if req.HasHistory || containsAny(lower, priorOutputMarkers) {
		score += wPriorToolOutput
	}

	level, confidence := bandComplexity(score)
	return ToolComplexityResult{Level: level, Confidence: confidence, Score: score}
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
