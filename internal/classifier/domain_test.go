package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDomainCode(t *testing.T) {
	r := ClassifyDomain("I'm getting a stack trace in my python function, can you help debug this bug?", nil)
	assert.Equal(t, DomainCode, r.Label)
	assert.Greater(t, r.Confidence, domainScoreThreshold)
}

func TestClassifyDomainFallsBackToGeneral(t *testing.T) {
	r := ClassifyDomain("blah blah nothing matches anything here", nil)
	assert.Equal(t, DomainGeneral, r.Label)
	assert.Equal(t, 0.5, r.Confidence)
}

func TestClassifyDomainMCQBoostsSubjectDemotesConversation(t *testing.T) {
	query := "As we discussed, which equation solves for x?\nA) x=1\nB) x=2\nC) x=3\nD) x=4"
	r := ClassifyDomain(query, nil)
	assert.Equal(t, DomainMath, r.Label)
}

func TestClassifyDomainMultiTurnBoostsConversation(t *testing.T) {
	r := ClassifyDomain("Going back to what you mentioned earlier, can we continue?", nil)
	assert.Equal(t, DomainConversation, r.Label)
}

func TestClassifyDomainSemanticOverride(t *testing.T) {
	override := func(q string) (Domain, float64, bool) { return DomainLegal, 0.9, true }
	r := ClassifyDomain("totally unrelated text", override)
	assert.Equal(t, DomainLegal, r.Label)
	assert.Equal(t, 0.9, r.Confidence)
}
