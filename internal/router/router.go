package router

import "github.com/jordanhubbard/cascadeflow/internal/classifier"

var noToolComplexityTable = map[classifier.Complexity]Strategy{
	classifier.ComplexityTrivial:  StrategyCascade,
	classifier.ComplexitySimple:   StrategyCascade,
	classifier.ComplexityModerate: StrategyCascade,
	classifier.ComplexityHard:     StrategyDirectBest,
	classifier.ComplexityExpert:   StrategyDirectBest,
}

// Route implements spec.md §4.3's ordered rule list, first match wins,
// every rule appending its reason. policies is keyed by domain; a missing
// entry means "use defaults" (rule 5).
func Route(req Request, pool []ModelCapability, policies map[classifier.Domain]DomainPolicy, defaults Defaults) RoutingDecision {
	var reasons []string

	// Rule 1: force flags.
	if req.ForceDirect {
		return RoutingDecision{
			Strategy:  StrategyDirectBest,
			Verifier:  defaults.Verifier,
			Threshold: defaults.Threshold,
			Reason:    append(reasons, "force_direct"),
		}
	}

	policy, hasPolicy := policies[req.Domain]

	// Rule 2: tool branch.
	if len(req.Tools) > 0 {
		return routeToolBranch(req, pool, policy, hasPolicy, defaults, reasons)
	}

	// Rule 3: complexity table.
	strategy := noToolComplexityTable[req.Classification.Complexity.Level]
	reasons = append(reasons, "complexity_table:"+string(req.Classification.Complexity.Level)+"->"+string(strategy))

	// Rule 4: domain override.
	if hasPolicy {
		if policy.RequireVerifier {
			return RoutingDecision{
				Strategy:  StrategyDirectBest,
				Drafter:   pickDrafter(policy, defaults),
				Verifier:  pickVerifier(policy, defaults),
				Threshold: pickThreshold(policy, defaults),
				Reason:    append(reasons, "domain_require_verifier"),
			}
		}
		if policy.CascadeComplexities != nil {
			if !policy.CascadeComplexities[req.Classification.Complexity.Level] {
				return RoutingDecision{
					Strategy:  StrategyDirectBest,
					Drafter:   pickDrafter(policy, defaults),
					Verifier:  pickVerifier(policy, defaults),
					Threshold: pickThreshold(policy, defaults),
					Reason:    append(reasons, "domain_cascade_whitelist_miss"),
				}
			}
		}
	}

	// Rule 5: default, using domain config when present else global defaults.
	return RoutingDecision{
		Strategy:  strategy,
		Drafter:   pickDrafter(policy, defaults),
		Verifier:  pickVerifier(policy, defaults),
		Threshold: pickThreshold(policy, defaults),
		Reason:    append(reasons, "default"),
	}
}

func routeToolBranch(req Request, pool []ModelCapability, policy DomainPolicy, hasPolicy bool, defaults Defaults, reasons []string) RoutingDecision {
	allowed := make([]string, 0, len(pool))
	for _, m := range pool {
		if m.SupportsTools {
			allowed = append(allowed, m.ID)
		}
	}
	reasons = append(reasons, "tool_request:filtered_to_tool_capable")

	toolLevel := classifier.ComplexityTrivial
	if req.Classification.ToolComplexity != nil {
		toolLevel = req.Classification.ToolComplexity.Level
	}

	if toolLevel == classifier.ComplexityHard || toolLevel == classifier.ComplexityExpert {
		return RoutingDecision{
			Strategy:      StrategyDirectLarge,
			Verifier:      pickVerifier(policy, defaults),
			Threshold:     pickThreshold(policy, defaults),
			AllowedModels: allowed,
			Reason:        append(reasons, "tool_complexity_hard_or_expert"),
		}
	}
	_ = hasPolicy
	return RoutingDecision{
		Strategy:      StrategyToolCascade,
		Drafter:       pickDrafter(policy, defaults),
		Verifier:      pickVerifier(policy, defaults),
		Threshold:     pickThreshold(policy, defaults),
		AllowedModels: allowed,
		Reason:        append(reasons, "tool_complexity_cascade_eligible"),
	}
}

func pickDrafter(policy DomainPolicy, defaults Defaults) string {
	if policy.Drafter != "" {
		return policy.Drafter
	}
	return defaults.Drafter
}

func pickVerifier(policy DomainPolicy, defaults Defaults) string {
	if policy.Verifier != "" {
		return policy.Verifier
	}
	return defaults.Verifier
}

func pickThreshold(policy DomainPolicy, defaults Defaults) float64 {
	if policy.HasThreshold {
		return policy.Threshold
	}
	return defaults.Threshold
}
