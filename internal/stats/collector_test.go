package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndGlobal(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	c.Record(Snapshot{Timestamp: now, ModelID: "m1", ProviderID: "p1", Domain: "code", LatencyMs: 100, CostUSD: 0.01, Success: true})
	c.Record(Snapshot{Timestamp: now, ModelID: "m2", ProviderID: "p2", Domain: "code", LatencyMs: 200, CostUSD: 0.02, Success: true})

	global := c.Global()
	require.NotEmpty(t, global)

	found := false
	for _, a := range global {
		if a.Window == "1m" {
			found = true
			assert.Equal(t, 2, a.RequestCount)
			assert.Equal(t, 150.0, a.AvgLatencyMs)
			assert.InDelta(t, 0.03, a.TotalCostUSD, 1e-9)
		}
	}
	assert.True(t, found, "expected 1m window in global stats")
}

func TestSummaryByDomain(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	c.Record(Snapshot{Timestamp: now, Domain: "code", LatencyMs: 100, Success: true})
	c.Record(Snapshot{Timestamp: now, Domain: "code", LatencyMs: 200, Success: false, DraftAccepted: false})
	c.Record(Snapshot{Timestamp: now, Domain: "math", LatencyMs: 50, Success: true, DraftAccepted: true})

	summary := c.SummaryByDomain()
	oneMin, ok := summary["1m"]
	require.True(t, ok)
	assert.Len(t, oneMin, 2)

	for _, a := range oneMin {
		if a.Domain == "code" {
			assert.Equal(t, 2, a.RequestCount)
			assert.Equal(t, 1, a.ErrorCount)
			assert.Equal(t, 0.5, a.ErrorRate)
		}
	}
}

func TestSummaryByProvider(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	c.Record(Snapshot{Timestamp: now, ModelID: "m1", ProviderID: "openai", LatencyMs: 100, Success: true})
	c.Record(Snapshot{Timestamp: now, ModelID: "m2", ProviderID: "openai", LatencyMs: 200, Success: true})
	c.Record(Snapshot{Timestamp: now, ModelID: "m3", ProviderID: "anthropic", LatencyMs: 50, Success: true})

	byProvider := c.SummaryByProvider()
	oneMin, ok := byProvider["1m"]
	require.True(t, ok)
	assert.Len(t, oneMin, 2)
}

func TestPrune(t *testing.T) {
	c := NewCollector()
	c.maxAge = time.Second

	old := time.Now().Add(-2 * time.Second)
	recent := time.Now()

	c.Record(Snapshot{Timestamp: old, ModelID: "old", Success: true})
	c.Record(Snapshot{Timestamp: recent, ModelID: "new", Success: true})

	c.Prune()
	assert.Equal(t, 1, c.SnapshotCount())
}

func TestP95Latency(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	for i := 0; i < 19; i++ {
		c.Record(Snapshot{Timestamp: now, ModelID: "m1", ProviderID: "p1", LatencyMs: 10, Success: true})
	}
	c.Record(Snapshot{Timestamp: now, ModelID: "m1", ProviderID: "p1", LatencyMs: 500, Success: true})

	global := c.Global()
	for _, a := range global {
		if a.Window == "1m" {
			assert.Equal(t, 500.0, a.P95LatencyMs)
		}
	}
}

func TestEmptyCollector(t *testing.T) {
	c := NewCollector()
	assert.Empty(t, c.Global())
}

func TestDraftAcceptanceRate(t *testing.T) {
	c := NewCollector()
	now := time.Now()
	c.Record(Snapshot{Timestamp: now, Domain: "code", Success: true, DraftAccepted: true})
	c.Record(Snapshot{Timestamp: now, Domain: "code", Success: true, DraftAccepted: false})

	for _, a := range c.Global() {
		if a.Window == "1m" {
			assert.Equal(t, 0.5, a.DraftAcceptanceRate)
		}
	}
}
