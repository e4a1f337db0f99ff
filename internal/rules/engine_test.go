package rules

import (
	"testing"

	"github.com/jordanhubbard/cascadeflow/internal/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideNoLayersReturnsNil(t *testing.T) {
	e := New()
	d := e.Decide(Context{})
	assert.Nil(t, d)
}

func TestDecideDomainRequireVerifier(t *testing.T) {
	e := New()
	d := e.Decide(Context{Domain: classifier.DomainMedical, DomainConfig: &DomainConfig{Enabled: true, RequireVerifier: true}})
	require.NotNil(t, d)
	assert.Equal(t, StrategyDirectBest, d.Strategy)
}

func TestDecideDomainCascadeWhitelistHit(t *testing.T) {
	e := New()
	d := e.Decide(Context{
		Domain:     classifier.DomainCode,
		Complexity: classifier.ComplexitySimple,
		DomainConfig: &DomainConfig{
			Enabled:             true,
			CascadeComplexities: []classifier.Complexity{classifier.ComplexitySimple, classifier.ComplexityTrivial},
		},
	})
	require.NotNil(t, d)
	assert.Equal(t, StrategyCascade, d.Strategy)
}

func TestDecideDomainCascadeWhitelistMiss(t *testing.T) {
	e := New()
	d := e.Decide(Context{
		Domain:     classifier.DomainLegal,
		Complexity: classifier.ComplexityModerate,
		DomainConfig: &DomainConfig{
			Enabled:             true,
			CascadeComplexities: []classifier.Complexity{classifier.ComplexityTrivial},
		},
	})
	require.NotNil(t, d)
	assert.Equal(t, StrategyDirectBest, d.Strategy)
}

func TestDecideChannelHeartbeatDefaultsToDirectCheap(t *testing.T) {
	e := New()
	e.ChannelModels["heartbeat"] = []string{"cheap"}
	d := e.Decide(Context{Channel: "heartbeat"})
	require.NotNil(t, d)
	assert.Equal(t, StrategyDirectCheap, d.Strategy)
}

func TestDecideChannelFailover(t *testing.T) {
	e := New()
	e.ChannelFailover["missing"] = "fallback"
	e.ChannelModels["fallback"] = []string{"cheap", "strong"}
	d := e.Decide(Context{Channel: "missing"})
	require.NotNil(t, d)
	assert.Equal(t, "fallback", d.PreferredChannel)
	assert.Equal(t, []string{"cheap", "strong"}, d.AllowedModels)
}

func TestDecideKPIProfileOverrides(t *testing.T) {
	e := New()
	d := e.Decide(Context{KPIFlags: map[string]any{"profile": "quality"}})
	require.NotNil(t, d)
	assert.Equal(t, StrategyDirectBest, d.Strategy)

	d = e.Decide(Context{KPIFlags: map[string]any{"profile": "cheap"}})
	require.NotNil(t, d)
	assert.Equal(t, StrategyCascade, d.Strategy)
}

func TestDecideKPIRiskHighForcesDirectBest(t *testing.T) {
	e := New()
	d := e.Decide(Context{KPIFlags: map[string]any{"risk": "high"}})
	require.NotNil(t, d)
	assert.Equal(t, StrategyDirectBest, d.Strategy)
}

func TestDecideLayersMergeReasonsAndLaterWins(t *testing.T) {
	e := New()
	e.Workflows["wf1"] = WorkflowConfig{Name: "wf1", ForceModels: []string{"pinned-model"}}
	d := e.Decide(Context{
		Domain:       classifier.DomainGeneral,
		DomainConfig: &DomainConfig{Enabled: true},
		WorkflowName: "wf1",
	})
	require.NotNil(t, d)
	assert.Equal(t, StrategyCascade, d.Strategy, "workflow layer has no routing_strategy opinion, domain layer's wins")
	assert.Contains(t, d.Reason, "domain")
	assert.Contains(t, d.Reason, "workflow")
	assert.Equal(t, []string{"pinned-model"}, d.ForcedModels)
}

func TestDecideTierExcludedModelsCombineBothFields(t *testing.T) {
	e := New()
	e.Tiers["free"] = TierConfig{Name: "free", ExcludeModels: []string{"a"}, ExcludedModels: []string{"b"}}
	d := e.Decide(Context{UserTier: "free"})
	require.NotNil(t, d)
	assert.ElementsMatch(t, []string{"a", "b"}, d.ExcludedModels)
}
