// Package store persists routing configuration, provider/model pools,
// decision traces, and per-domain adaptive-controller snapshots across
// process restarts. The snapshots are written for diagnostics; nothing in
// the module loads them back into internal/adaptive on startup.
package store

import (
	"context"
	"time"
)

// Store defines the persistence interface for CascadeFlow.
type Store interface {
	// Models and providers (the pool routed over, spec.md §4.3/§4.1)
	ListModels(ctx context.Context) ([]ModelRecord, error)
	GetModel(ctx context.Context, id string) (*ModelRecord, error)
	UpsertModel(ctx context.Context, m ModelRecord) error
	DeleteModel(ctx context.Context, id string) error

	ListProviders(ctx context.Context) ([]ProviderRecord, error)
	UpsertProvider(ctx context.Context, p ProviderRecord) error
	DeleteProvider(ctx context.Context, id string) error

	// Rule-engine policy config (spec.md §4.4: domain/tier/workflow layers)
	SaveDomainPolicy(ctx context.Context, p DomainPolicyRecord) error
	LoadDomainPolicies(ctx context.Context) ([]DomainPolicyRecord, error)
	SaveTierPolicy(ctx context.Context, p TierPolicyRecord) error
	LoadTierPolicies(ctx context.Context) ([]TierPolicyRecord, error)
	SaveWorkflowPolicy(ctx context.Context, p WorkflowPolicyRecord) error
	LoadWorkflowPolicies(ctx context.Context) ([]WorkflowPolicyRecord, error)

	// Decision-trace log (spec.md §4.6/§6: one row per completed cascade,
	// the persisted counterpart of the JSONL trace file)
	LogCascadeTrace(ctx context.Context, entry CascadeTraceLog) error
	ListCascadeTraces(ctx context.Context, limit, offset int) ([]CascadeTraceLog, error)
	PruneOldTraces(ctx context.Context, retention time.Duration) (int64, error)

	// Adaptive-controller snapshots (spec.md §4.7's per-domain adjustment,
	// written periodically; not loaded back into the controller on restart)
	SaveAdaptiveSnapshot(ctx context.Context, s AdaptiveSnapshot) error
	LoadAdaptiveSnapshots(ctx context.Context) ([]AdaptiveSnapshot, error)

	// Credential-at-rest blob (internal/vault persistence)
	SaveVaultBlob(ctx context.Context, salt []byte, data map[string]string) error
	LoadVaultBlob(ctx context.Context) (salt []byte, data map[string]string, err error)

	// Audit logging of config/policy mutations
	LogAudit(ctx context.Context, entry AuditEntry) error
	ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditEntry, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ModelRecord is the persisted form of a routable model's capabilities.
type ModelRecord struct {
	ID               string  `json:"id"`
	ProviderID       string  `json:"provider_id"`
	SupportsTools    bool    `json:"supports_tools"`
	CostPer1KIn      float64 `json:"cost_per_1k_in"`
	CostPer1KOut     float64 `json:"cost_per_1k_out"`
	MaxContextTokens int     `json:"max_context_tokens"`
	Enabled          bool    `json:"enabled"`
}

// ProviderRecord is the persisted form of a back-end provider configuration.
type ProviderRecord struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // anthropic, openai, local
	BaseURL   string `json:"base_url"`
	CredStore string `json:"cred_store"` // env, vault
	Enabled   bool   `json:"enabled"`
}

// DomainPolicyRecord is the persisted form of a rules.DomainConfig.
type DomainPolicyRecord struct {
	Domain              string  `json:"domain"`
	Enabled             bool    `json:"enabled"`
	RequireVerifier     bool    `json:"require_verifier"`
	CascadeComplexities string  `json:"cascade_complexities"` // JSON array of complexity labels
	Drafter             string  `json:"drafter"`
	Verifier            string  `json:"verifier"`
	Threshold           float64 `json:"threshold"`
}

// TierPolicyRecord is the persisted form of a rules.TierConfig.
type TierPolicyRecord struct {
	Name             string  `json:"name"`
	AllowedModels    string  `json:"allowed_models"` // JSON array
	ExcludedModels   string  `json:"excluded_models"`
	PreferredModels  string  `json:"preferred_models"`
	QualityThreshold float64 `json:"quality_threshold"`
	MaxBudget        float64 `json:"max_budget"`
}

// WorkflowPolicyRecord is the persisted form of a rules.WorkflowConfig.
type WorkflowPolicyRecord struct {
	Name                     string  `json:"name"`
	ForceModels              string  `json:"force_models"`
	PreferredModels          string  `json:"preferred_models"`
	ExcludeModels            string  `json:"exclude_models"`
	QualityThresholdOverride float64 `json:"quality_threshold_override"`
	HasThresholdOverride     bool    `json:"has_threshold_override"`
	MaxBudgetOverride        float64 `json:"max_budget_override"`
	HasBudgetOverride        bool    `json:"has_budget_override"`
}

// CascadeTraceLog is the persisted counterpart of one decision-trace line.
type CascadeTraceLog struct {
	ID              int64     `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id"`
	Domain          string    `json:"domain"`
	Complexity      string    `json:"complexity"`
	Strategy        string    `json:"strategy"`
	DrafterModel    string    `json:"drafter_model"`
	VerifierModel   string    `json:"verifier_model,omitempty"`
	DraftAccepted   bool      `json:"draft_accepted"`
	VerifierUsed    bool      `json:"verifier_used"`
	QualityScore    float64   `json:"quality_score"`
	LatencyMs       float64   `json:"latency_ms"`
	CostUSD         float64   `json:"cost_usd"`
	Success         bool      `json:"success"`
	ErrorClass      string    `json:"error_class,omitempty"`
}

// AdaptiveSnapshot is the persisted adjustment state for one domain's
// internal/adaptive threshold controller.
type AdaptiveSnapshot struct {
	Domain     string    `json:"domain"`
	Adjustment float64   `json:"adjustment"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AuditEntry captures a config/policy mutation for the audit trail.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`   // e.g. "domain_policy.upsert"
	Resource  string    `json:"resource"` // e.g. "code"
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}
