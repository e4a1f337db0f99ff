package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyComplexityTrivial(t *testing.T) {
	r := ClassifyComplexity("The capital of France is Paris.")
	assert.Equal(t, ComplexityTrivial, r.Level)
	assert.Greater(t, r.Confidence, 0.0)
}

func TestClassifyComplexityExpert(t *testing.T) {
	query := "First derive the closed-form solution, then prove convergence, and finally " +
		"compare it against the baseline algorithm (see appendix (A (i)) for details). " +
		"```go\nfunc f() {}\n```\n1. step one\n2. step two\n3. step three\n" +
		"Why does this hold? What about edge cases? How do we justify the bound?"
	r := ClassifyComplexity(query)
	assert.Equal(t, ComplexityExpert, r.Level)
}

func TestComplexityLess(t *testing.T) {
	assert.True(t, ComplexityTrivial.Less(ComplexityExpert))
	assert.False(t, ComplexityExpert.Less(ComplexityTrivial))
	assert.False(t, ComplexitySimple.Less(ComplexitySimple))
}

func TestBandComplexityTieBreaksLow(t *testing.T) {
	level, _ := bandComplexity(1.0) // exactly on the trivial/simple edge
	assert.Equal(t, ComplexityTrivial, level, "a tie at a band edge breaks toward the lower level")
}

func TestComplexityScoreMonotonicWithLength(t *testing.T) {
	short := complexityFeatureScore("hi")
	long := complexityFeatureScore("this is a considerably longer query with quite a few more words in it than the short one")
	assert.Greater(t, long, short)
}
