package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyToolComplexitySingleTool(t *testing.T) {
	r := ClassifyToolComplexity(ToolRequest{
		Tools: []ToolParams{{Name: "get_weather", ParamCount: 1}},
		Query: "What's the weather in Boston?",
	})
	assert.Equal(t, ComplexitySimple, r.Level)
}

func TestClassifyToolComplexityChainedMultiTool(t *testing.T) {
	r := ClassifyToolComplexity(ToolRequest{
		Tools: []ToolParams{
			{Name: "search", ParamCount: 2},
			{Name: "summarize", ParamCount: 1},
			{Name: "compare_results", ParamCount: 3},
		},
		Query: "First search for flights, then compare them against hotel prices, " +
			"and if the total exceeds budget otherwise pick the cheapest. " +
			"1. search flights\n2. search hotels\n3. compare and combine",
		HasHistory: true,
	})
	assert.Equal(t, ComplexityExpert, r.Level)
}

func TestClassifyNoToolsYieldsNilToolComplexity(t *testing.T) {
	c := Classify("hello there", nil, false, nil)
	assert.Nil(t, c.ToolComplexity)
}

func TestClassifyWithToolsYieldsToolComplexity(t *testing.T) {
	c := Classify("get me the weather", []ToolParams{{Name: "get_weather", ParamCount: 1}}, false, nil)
	assert.NotNil(t, c.ToolComplexity)
}
