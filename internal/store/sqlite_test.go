package store

import (
	"context"
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestModelsCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := ModelRecord{ID: "claude-opus", ProviderID: "anthropic", SupportsTools: true,
		CostPer1KIn: 0.015, CostPer1KOut: 0.075, MaxContextTokens: 200000, Enabled: true}
	require.NoError(t, s.UpsertModel(ctx, m))

	got, err := s.GetModel(ctx, "claude-opus")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SupportsTools)
	assert.Equal(t, 200000, got.MaxContextTokens)

	m.SupportsTools = false
	require.NoError(t, s.UpsertModel(ctx, m))
	got, _ = s.GetModel(ctx, "claude-opus")
	assert.False(t, got.SupportsTools)

	all, err := s.ListModels(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteModel(ctx, "claude-opus"))
	got, _ = s.GetModel(ctx, "claude-opus")
	assert.Nil(t, got)
}

func TestGetModelNotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetModel(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProvidersCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := ProviderRecord{ID: "anthropic", Type: "anthropic", BaseURL: "https://api.anthropic.com", CredStore: "vault", Enabled: true}
	require.NoError(t, s.UpsertProvider(ctx, p))

	all, err := s.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "vault", all[0].CredStore)

	require.NoError(t, s.DeleteProvider(ctx, "anthropic"))
	all, _ = s.ListProviders(ctx)
	assert.Empty(t, all)
}

func TestDomainPolicyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := DomainPolicyRecord{Domain: "code", Enabled: true, RequireVerifier: true,
		CascadeComplexities: `["trivial","simple"]`, Drafter: "haiku", Verifier: "opus", Threshold: 0.7}
	require.NoError(t, s.SaveDomainPolicy(ctx, p))

	all, err := s.LoadDomainPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].RequireVerifier)
	assert.Equal(t, 0.7, all[0].Threshold)
}

func TestTierPolicyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := TierPolicyRecord{Name: "enterprise", AllowedModels: `["opus","sonnet"]`, QualityThreshold: 0.8, MaxBudget: 1.0}
	require.NoError(t, s.SaveTierPolicy(ctx, p))

	all, err := s.LoadTierPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "enterprise", all[0].Name)
}

func TestWorkflowPolicyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := WorkflowPolicyRecord{Name: "incident-response", ForceModels: `["opus"]`, HasThresholdOverride: true, QualityThresholdOverride: 0.9}
	require.NoError(t, s.SaveWorkflowPolicy(ctx, p))

	all, err := s.LoadWorkflowPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].HasThresholdOverride)
}

func TestCascadeTraceLogAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := CascadeTraceLog{Timestamp: time.Now().UTC(), RequestID: "req-1", Domain: "code",
		Complexity: "moderate", Strategy: "CASCADE", DrafterModel: "haiku", DraftAccepted: true,
		QualityScore: 0.82, LatencyMs: 420, CostUSD: 0.002, Success: true}
	require.NoError(t, s.LogCascadeTrace(ctx, entry))

	traces, err := s.ListCascadeTraces(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "req-1", traces[0].RequestID)
	assert.True(t, traces[0].DraftAccepted)
}

func TestPruneOldTraces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := CascadeTraceLog{Timestamp: time.Now().Add(-48 * time.Hour), RequestID: "old", Domain: "code"}
	recent := CascadeTraceLog{Timestamp: time.Now(), RequestID: "new", Domain: "code"}
	require.NoError(t, s.LogCascadeTrace(ctx, old))
	require.NoError(t, s.LogCascadeTrace(ctx, recent))

	deleted, err := s.PruneOldTraces(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	traces, err := s.ListCascadeTraces(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "new", traces[0].RequestID)
}

func TestAdaptiveSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := AdaptiveSnapshot{Domain: "code", Adjustment: 0.06, UpdatedAt: time.Now().UTC()}
	require.NoError(t, s.SaveAdaptiveSnapshot(ctx, snap))

	snap.Adjustment = -0.02
	require.NoError(t, s.SaveAdaptiveSnapshot(ctx, snap))

	all, err := s.LoadAdaptiveSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, -0.02, all[0].Adjustment)
}

func TestVaultBlobRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	salt := []byte("0123456789abcdef")
	data := map[string]string{"provider:anthropic": "ZW5jcnlwdGVk"}
	require.NoError(t, s.SaveVaultBlob(ctx, salt, data))

	gotSalt, gotData, err := s.LoadVaultBlob(ctx)
	require.NoError(t, err)
	assert.Equal(t, salt, gotSalt)
	assert.Equal(t, data, gotData)
}

func TestVaultBlobEmptyBeforeSave(t *testing.T) {
	s := newTestStore(t)
	salt, data, err := s.LoadVaultBlob(context.Background())
	require.NoError(t, err)
	assert.Nil(t, salt)
	assert.Nil(t, data)
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LogAudit(ctx, AuditEntry{Timestamp: time.Now().UTC(), Action: "domain_policy.upsert", Resource: "code"}))

	logs, err := s.ListAuditLogs(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "domain_policy.upsert", logs[0].Action)
}
