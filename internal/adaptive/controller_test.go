package adaptive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveThresholdNoAdjustmentEqualsBase(t *testing.T) {
	c := New()
	assert.Equal(t, 0.5, c.EffectiveThreshold("code", 0.5))
}

func TestAdjustTightensOnHighAcceptance(t *testing.T) {
	c := New()
	for i := 0; i < 200; i++ {
		c.Record("code", Outcome{Confidence: 0.9, Accepted: i%10 != 0})
	}
	// scenario 5 (spec.md §8): 200 outcomes at 90% acceptance for
	// domain=code, base 0.5, expect final effective threshold in [0.53,0.60].
	eff := c.EffectiveThreshold("code", 0.5)
	assert.GreaterOrEqual(t, eff, 0.53)
	assert.LessOrEqual(t, eff, 0.60)
}

func TestAdjustLoosensOnLowAcceptance(t *testing.T) {
	c := New()
	for i := 0; i < 60; i++ {
		c.Record("math", Outcome{Confidence: 0.4, Accepted: false})
	}
	eff := c.EffectiveThreshold("math", 0.5)
	assert.Less(t, eff, 0.5)
}

func TestAdjustmentClampedToRange(t *testing.T) {
	c := New()
	for i := 0; i < 2000; i++ {
		c.Record("code", Outcome{Confidence: 0.99, Accepted: true})
	}
	assert.LessOrEqual(t, c.Adjustment("code"), 0.15)
}

func TestEffectiveThresholdHardClampedToRange(t *testing.T) {
	c := New()
	assert.Equal(t, 0.20, c.EffectiveThreshold("code", 0.0))
	assert.Equal(t, 0.90, c.EffectiveThreshold("code", 5.0))
}

func TestHardQueryMemoryGating(t *testing.T) {
	c := New()
	c.RecordHardQuery([]float64{1, 0, 0})
	assert.True(t, c.IsKnownHard([]float64{0.99, 0.01, 0}))
	assert.False(t, c.IsKnownHard([]float64{0, 1, 0}))
}

func TestHardQueryMemoryFIFOEviction(t *testing.T) {
	c := New()
	for i := 0; i < hardQueryMemoryCapacity+10; i++ {
		c.RecordHardQuery([]float64{float64(i), 1, 0})
	}
	assert.Len(t, c.hardMem, hardQueryMemoryCapacity)
}
