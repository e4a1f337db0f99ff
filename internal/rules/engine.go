package rules

import (
	"strings"

	"github.com/jordanhubbard/cascadeflow/internal/classifier"
)

// Decide applies domain → tenant → channel (with failover) → tier →
// workflow → KPI in that order and returns the merged decision, or nil if
// no layer had an opinion (spec.md §4.4).
func (e *Engine) Decide(ctx Context) *Decision {
	var merged *Decision

	if e.EnableDomainRouting {
		merged = mergeDecisions(merged, e.applyDomain(ctx))
	}
	merged = mergeDecisions(merged, e.applyTenant(ctx))
	merged = mergeDecisions(merged, e.applyChannelFailover(ctx))
	merged = mergeDecisions(merged, e.applyTier(ctx))
	merged = mergeDecisions(merged, e.applyWorkflow(ctx))
	merged = mergeDecisions(merged, e.applyKPI(ctx))

	return merged
}

func (e *Engine) applyDomain(ctx Context) *Decision {
	dc := ctx.DomainConfig
	if dc == nil || !dc.Enabled {
		return nil
	}

	confidence := ctx.DomainConfidence
	if confidence <= 0 {
		confidence = ctx.ComplexityConfidence
	}
	if confidence <= 0 {
		confidence = 0.6
	}

	metadata := map[string]any{
		"rule":             "domain_routing",
		"domain":           string(ctx.Domain),
		"domain_confidence": ctx.DomainConfidence,
		"domain_drafter":   dc.Drafter,
		"domain_verifier":  dc.Verifier,
		"domain_threshold": dc.Threshold,
	}

	// require_verifier short-circuits before the cascade-whitelist check —
	// it is the domain layer's own highest-precedence rule.
	if dc.RequireVerifier {
		return &Decision{
			Strategy:   StrategyDirectBest,
			Reason:     "domain '" + string(ctx.Domain) + "' requires verifier",
			Confidence: confidence,
			Metadata:   metadata,
		}
	}

	if len(dc.CascadeComplexities) > 0 {
		whitelist := make(map[classifier.Complexity]bool, len(dc.CascadeComplexities))
		for _, c := range dc.CascadeComplexities {
			whitelist[c] = true
		}
		if whitelist[ctx.Complexity] {
			return &Decision{
				Strategy:   StrategyCascade,
				Reason:     "domain '" + string(ctx.Domain) + "' + " + string(ctx.Complexity) + " -> cascade",
				Confidence: minf(ctx.ComplexityConfidence, confidence),
				Metadata:   metadata,
			}
		}
		return &Decision{
			Strategy:   StrategyDirectBest,
			Reason:     "domain '" + string(ctx.Domain) + "' + " + string(ctx.Complexity) + " -> direct",
			Confidence: confidence,
			Metadata:   metadata,
		}
	}

	return &Decision{
		Strategy:   StrategyCascade,
		Reason:     "domain '" + string(ctx.Domain) + "' configured -> cascade",
		Confidence: confidence,
		Metadata:   metadata,
	}
}

func (e *Engine) applyTenant(ctx Context) *Decision {
	if ctx.TenantID == "" {
		return nil
	}
	rule, ok := e.TenantRules[ctx.TenantID]
	if !ok {
		return nil
	}
	d := rule
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	d.Metadata["rule"] = "tenant_override"
	d.Metadata["tenant_id"] = ctx.TenantID
	if d.Reason == "" {
		d.Reason = "tenant '" + ctx.TenantID + "' override applied"
	}
	if d.Confidence == 0 {
		d.Confidence = 0.75
	}
	return &d
}

func (e *Engine) applyChannelFailover(ctx Context) *Decision {
	channel := ctx.Channel
	if channel == "" {
		return nil
	}

	selected := channel
	models, ok := e.ChannelModels[selected]
	var failover string
	if !ok || len(models) == 0 {
		failover = e.ChannelFailover[selected]
		if failover != "" {
			selected = failover
			models = e.ChannelModels[selected]
		}
	}
	if len(models) == 0 && failover == "" {
		return nil
	}

	var strategy Strategy
	if s, ok := e.ChannelStrategies[selected]; ok {
		strategy = s
	} else if s, ok := e.ChannelStrategies[channel]; ok {
		strategy = s
	}
	if strategy == "" && (selected == "heartbeat" || selected == "cron") {
		strategy = StrategyDirectCheap
	}

	return &Decision{
		Strategy:         strategy,
		Reason:           "channel '" + channel + "' routing applied",
		Confidence:       0.65,
		Metadata:         map[string]any{"rule": "channel_routing", "channel": channel, "selected_channel": selected, "failover_channel": failover},
		AllowedModels:    models,
		PreferredChannel: selected,
		FailoverChannel:  failover,
	}
}

func (e *Engine) applyTier(ctx Context) *Decision {
	tier := ctx.TierConfig
	if tier == nil && ctx.UserTier != "" {
		if t, ok := e.Tiers[ctx.UserTier]; ok {
			tier = &t
		}
	}
	if tier == nil {
		return nil
	}

	excluded := append([]string{}, tier.ExcludeModels...)
	excluded = append(excluded, tier.ExcludedModels...)

	return &Decision{
		Reason:     "tier '" + tier.Name + "' constraints applied",
		Confidence: 0.7,
		Metadata:   map[string]any{"rule": "tier_constraints", "tier": tier.Name},
		AllowedModels:    tier.AllowedModels,
		ExcludedModels:   nilIfEmpty(excluded),
		PreferredModels:  tier.PreferredModels,
		QualityThreshold: tier.QualityThreshold,
		HasThreshold:     tier.QualityThreshold > 0,
		MaxBudget:        tier.MaxBudget,
		HasBudget:        tier.MaxBudget > 0,
	}
}

func (e *Engine) applyWorkflow(ctx Context) *Decision {
	wf := ctx.WorkflowConfig
	if wf == nil && ctx.WorkflowName != "" {
		if w, ok := e.Workflows[ctx.WorkflowName]; ok {
			wf = &w
		}
	}
	if wf == nil {
		return nil
	}

	return &Decision{
		Reason:           "workflow '" + wf.Name + "' overrides applied",
		Confidence:       0.8,
		Metadata:         map[string]any{"rule": "workflow_overrides", "workflow": wf.Name},
		ForcedModels:     nilIfEmpty(wf.ForceModels),
		PreferredModels:  wf.PreferredModels,
		ExcludedModels:   wf.ExcludeModels,
		QualityThreshold: wf.QualityThresholdOverride,
		HasThreshold:     wf.HasThresholdOverride,
		MaxBudget:        wf.MaxBudgetOverride,
		HasBudget:        wf.HasBudgetOverride,
	}
}

func (e *Engine) applyKPI(ctx Context) *Decision {
	flags := ctx.KPIFlags
	if len(flags) == 0 {
		return nil
	}
	metadata := map[string]any{"rule": "kpi_flags", "kpis": flags}

	if profile, ok := flags["profile"].(string); ok {
		p := strings.ToLower(strings.TrimSpace(profile))
		switch p {
		case "quality", "best", "accuracy":
			return &Decision{Strategy: StrategyDirectBest, Reason: "KPI profile override -> direct verifier", Confidence: 0.75, Metadata: metadata}
		case "cost", "cost_savings", "cheap", "fast":
			return &Decision{Strategy: StrategyCascade, Reason: "KPI profile override -> cascade", Confidence: 0.7, Metadata: metadata}
		}
	}

	risk := flags["risk"]
	if risk == nil {
		risk = flags["compliance"]
	}
	riskStr := strings.ToLower(toStr(risk))
	if riskStr == "high" || riskStr == "strict" || riskStr == "true" || riskStr == "1" {
		return &Decision{Strategy: StrategyDirectBest, Reason: "KPI risk/compliance override -> direct verifier", Confidence: 0.8, Metadata: metadata}
	}

	return &Decision{Reason: "KPI flags recorded", Confidence: 0.5, Metadata: metadata}
}

func toStr(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if b, ok := v.(bool); ok {
		if b {
			return "true"
		}
		return "false"
	}
	return ""
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// mergeDecisions layers other on top of base: other's non-empty fields win,
// reasons concatenate, confidence takes the max (spec.md §4.4).
func mergeDecisions(base, other *Decision) *Decision {
	if other == nil {
		return base
	}
	if base == nil {
		return other
	}

	if other.Strategy != "" {
		base.Strategy = other.Strategy
	}
	if other.Reason != "" {
		if base.Reason != "" {
			base.Reason = base.Reason + "; " + other.Reason
		} else {
			base.Reason = other.Reason
		}
	}
	if other.Confidence > base.Confidence {
		base.Confidence = other.Confidence
	}
	if len(other.Metadata) > 0 {
		if base.Metadata == nil {
			base.Metadata = map[string]any{}
		}
		for k, v := range other.Metadata {
			base.Metadata[k] = v
		}
	}
	if other.PreferredChannel != "" {
		base.PreferredChannel = other.PreferredChannel
	}
	if other.ModelName != "" {
		base.ModelName = other.ModelName
	}
	if other.AllowedModels != nil {
		base.AllowedModels = other.AllowedModels
	}
	if other.ExcludedModels != nil {
		base.ExcludedModels = other.ExcludedModels
	}
	if other.PreferredModels != nil {
		base.PreferredModels = other.PreferredModels
	}
	if other.ForcedModels != nil {
		base.ForcedModels = other.ForcedModels
	}
	if other.HasThreshold {
		base.QualityThreshold = other.QualityThreshold
		base.HasThreshold = true
	}
	if other.HasBudget {
		base.MaxBudget = other.MaxBudget
		base.HasBudget = true
	}
	if other.FailoverChannel != "" {
		base.FailoverChannel = other.FailoverChannel
	}

	return base
}
