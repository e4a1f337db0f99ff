// Package router implements the pure routing function of spec.md §4.3: it
// maps a classification plus the caller's tool list and the available
// model capabilities to one of a small set of execution strategies. It has
// no network, disk, or provider dependency of its own.
package router

import "github.com/jordanhubbard/cascadeflow/internal/classifier"

// Strategy is one of the five execution strategies spec.md §3 names.
type Strategy string

const (
	StrategyCascade      Strategy = "CASCADE"
	StrategyDirectCheap  Strategy = "DIRECT_CHEAP"
	StrategyDirectBest   Strategy = "DIRECT_BEST"
	StrategyToolCascade  Strategy = "TOOL_CASCADE"
	StrategyDirectLarge  Strategy = "DIRECT_LARGE"
)

// ModelCapability describes one candidate model's routing-relevant traits.
type ModelCapability struct {
	ID            string
	SupportsTools bool
	CostPer1KIn   float64
	CostPer1KOut  float64
}

// DomainPolicy is the per-domain override set consulted in rule 4/5
// (spec.md §4.3).
type DomainPolicy struct {
	RequireVerifier     bool
	CascadeComplexities map[classifier.Complexity]bool // whitelist; nil means "any"
	Drafter             string
	Verifier            string
	Threshold           float64
	HasThreshold        bool
}

// Defaults carries the global fallback drafter/verifier/threshold used when
// a domain has no configured policy.
type Defaults struct {
	Drafter   string
	Verifier  string
	Threshold float64
}

// Request is the subset of the caller's request the router needs.
type Request struct {
	Classification classifier.Classification
	Tools          []classifier.ToolParams
	ForceDirect    bool
	Domain         classifier.Domain
}

// RoutingDecision is the router's output (spec.md §3).
type RoutingDecision struct {
	Strategy        Strategy
	Drafter         string
	Verifier        string
	Threshold       float64
	Reason          []string
	Confidence      float64
	AllowedModels   []string
	ExcludedModels  []string
	PreferredModels []string
	ForcedModels    []string
	Budget          float64
	HasBudget       bool
	FailoverChannel string
	Metadata        map[string]any
}
