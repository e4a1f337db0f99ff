package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	r := New()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if r.reg == nil {
		t.Fatal("expected non-nil prometheus registry")
	}
	if r.RequestsTotal == nil {
		t.Fatal("expected non-nil RequestsTotal counter")
	}
	if r.LatencyMs == nil {
		t.Fatal("expected non-nil LatencyMs histogram")
	}
	if r.CostUSDTotal == nil {
		t.Fatal("expected non-nil CostUSDTotal counter")
	}
}

func TestHandlerNonNil(t *testing.T) {
	r := New()
	h := r.Handler()
	if h == nil {
		t.Fatal("expected non-nil http.Handler from Handler()")
	}
}

func TestMetricsCanBeCollected(t *testing.T) {
	r := New()

	r.RecordRequest("CASCADE", "factual")
	r.RecordDraftAccepted("factual")
	r.RecordCost("gpt-4o-mini", 0.01)
	r.RecordLatency("draft", 150.0)
	r.RecordRateLimited()

	mfs, err := r.reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected at least one metric family after recording values")
	}

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	want := []string{
		"cf_requests_total",
		"cf_draft_accepted_total",
		"cf_cost_usd_total",
		"cf_latency_ms",
		"cf_rate_limited_total",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("expected metric %q in gathered metrics", name)
		}
	}
}

func TestRecordCostSkipsNonPositive(t *testing.T) {
	r := New()
	r.RecordCost("free-model", 0)

	mfs, err := r.reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "cf_cost_usd_total" {
			continue
		}
		if len(mf.GetMetric()) != 0 {
			t.Error("expected no cost series recorded for a zero-cost call")
		}
	}
}

func TestMultipleRegistriesAreIndependent(t *testing.T) {
	r1 := New()
	r2 := New()

	r1.RecordRequest("CASCADE", "factual")

	mfs, err := r2.reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil && m.GetCounter().GetValue() > 0 {
				t.Error("r2 should not have any non-zero counters")
			}
		}
	}
	_ = r1
}

func TestRegisteredMetricDescriptions(t *testing.T) {
	r := New()

	ch := make(chan *prometheus.Desc, 10)
	go func() {
		r.RequestsTotal.Describe(ch)
		r.DraftAcceptedTotal.Describe(ch)
		r.CostUSDTotal.Describe(ch)
		r.LatencyMs.Describe(ch)
		close(ch)
	}()

	count := 0
	for range ch {
		count++
	}
	if count != 4 {
		t.Errorf("expected 4 metric descriptors, got %d", count)
	}
}
