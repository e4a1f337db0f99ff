package classifier

// SemanticDomainFn optionally overrides the keyword-tier domain vote with an
// embedding-similarity classifier (spec.md §4.2: "an optional
// semantic-detector override"). Implementations return ok=false to defer to
// the keyword scorer.
type SemanticDomainFn func(query string) (Domain, float64, bool)

// Classify runs the complexity, domain, and (when tools are present)
// tool-complexity scorers over a single request and bundles their results
// (spec.md §3/§4.2).
func Classify(query string, tools []ToolParams, hasHistory bool, semantic SemanticDomainFn) Classification {
	c := Classification{
		Complexity:   ClassifyComplexity(query),
		DomainResult: ClassifyDomain(query, semantic),
	}
	if len(tools) > 0 {
		tc := ClassifyToolComplexity(ToolRequest{Tools: tools, Query: query, HasHistory: hasHistory})
		c.ToolComplexity = &tc
	}
	return c
}
