// Package rules implements the layered rule engine of spec.md §4.4: domain,
// tenant, channel (with failover), tier, workflow, and KPI overrides are
// each evaluated independently and merged in that fixed order, later layers
// winning on conflicts while every layer's reason is concatenated.
package rules

import "github.com/jordanhubbard/cascadeflow/internal/classifier"

// Strategy mirrors router.Strategy; duplicated here (rather than imported)
// so that rules and router do not import each other: internal/cascade
// applies the merged Decision on top of the router's RoutingDecision.
type Strategy string

const (
	StrategyCascade     Strategy = "CASCADE"
	StrategyDirectCheap Strategy = "DIRECT_CHEAP"
	StrategyDirectBest  Strategy = "DIRECT_BEST"
)

// Decision is one layer's (or the merged) partial override.
type Decision struct {
	Strategy         Strategy // empty means "no opinion"
	Reason           string
	Confidence       float64
	Metadata         map[string]any
	PreferredChannel string
	ModelName        string
	AllowedModels    []string
	ExcludedModels   []string
	PreferredModels  []string
	ForcedModels     []string
	QualityThreshold float64
	HasThreshold     bool
	MaxBudget        float64
	HasBudget        bool
	FailoverChannel  string
}

// DomainConfig is the per-domain policy consulted by the domain layer.
type DomainConfig struct {
	Enabled             bool
	RequireVerifier     bool
	CascadeComplexities []classifier.Complexity // nil/empty means "no whitelist"
	Drafter             string
	Verifier            string
	Threshold           float64
}

// TierConfig is the per-user-tier policy consulted by the tier layer.
type TierConfig struct {
	Name             string
	AllowedModels    []string
	ExcludeModels    []string
	ExcludedModels   []string
	PreferredModels  []string
	QualityThreshold float64
	MaxBudget        float64
}

// WorkflowConfig is the per-workflow policy consulted by the workflow layer.
type WorkflowConfig struct {
	Name                    string
	ForceModels             []string
	PreferredModels         []string
	ExcludeModels           []string
	QualityThresholdOverride float64
	HasThresholdOverride     bool
	MaxBudgetOverride        float64
	HasBudgetOverride        bool
}

// Context bundles everything a request can carry into the rule engine.
type Context struct {
	Complexity           classifier.Complexity
	ComplexityConfidence float64
	Domain               classifier.Domain
	DomainConfidence     float64
	DomainConfig         *DomainConfig

	TenantID   string
	UserTier   string
	TierConfig *TierConfig

	Channel string

	WorkflowName   string
	WorkflowConfig *WorkflowConfig

	KPIFlags map[string]any
}

// Engine holds the static tables consulted by layers that key off a name
// rather than an embedded config (tenant overrides, tier/workflow lookup by
// name, channel routing tables).
type Engine struct {
	EnableDomainRouting bool
	Tiers               map[string]TierConfig
	Workflows           map[string]WorkflowConfig
	TenantRules         map[string]Decision
	ChannelModels       map[string][]string
	ChannelFailover     map[string]string
	ChannelStrategies   map[string]Strategy
}

// New builds an Engine with domain routing enabled by default.
func New() *Engine {
	return &Engine{
		EnableDomainRouting: true,
		Tiers:               map[string]TierConfig{},
		Workflows:           map[string]WorkflowConfig{},
		TenantRules:         map[string]Decision{},
		ChannelModels:       map[string][]string{},
		ChannelFailover:     map[string]string{},
		ChannelStrategies:   map[string]Strategy{},
	}
}
