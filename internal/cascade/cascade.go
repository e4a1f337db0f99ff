// Package cascade implements the executor FSM of spec.md §3/§5: a single
// request runs INIT -> CLASSIFY -> RULE+ROUTE -> DRAFT -> SCORE ->
// (VERIFY) -> FINALIZE, wiring together every other internal package
// (classifier, rules, router, scorer, budget, adaptive, providers) into one
// synchronous, bounded-latency call.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jordanhubbard/cascadeflow/internal/adaptive"
	"github.com/jordanhubbard/cascadeflow/internal/budget"
	"github.com/jordanhubbard/cascadeflow/internal/cferrors"
	"github.com/jordanhubbard/cascadeflow/internal/circuitbreaker"
	"github.com/jordanhubbard/cascadeflow/internal/classifier"
	"github.com/jordanhubbard/cascadeflow/internal/events"
	"github.com/jordanhubbard/cascadeflow/internal/health"
	"github.com/jordanhubbard/cascadeflow/internal/logging"
	"github.com/jordanhubbard/cascadeflow/internal/providers"
	"github.com/jordanhubbard/cascadeflow/internal/rules"
	"github.com/jordanhubbard/cascadeflow/internal/router"
	"github.com/jordanhubbard/cascadeflow/internal/scorer"
	"github.com/jordanhubbard/cascadeflow/internal/stats"
	"github.com/jordanhubbard/cascadeflow/internal/tracing"
)

// Recorder is the narrow metrics sink the executor reports outcomes
// through, satisfied by *metrics.Registry. Core packages never import
// internal/metrics directly; only internal/app's server wiring passes a
// concrete Recorder in, keeping the cascade free of a framework dependency.
type Recorder interface {
	RecordRequest(strategy, domain string)
	RecordDraftAccepted(domain string)
	RecordCost(model string, usd float64)
	RecordLatency(stage string, ms float64)
	RecordRateLimited()
}

// ModelPool is the capability/sender lookup the router and executor need.
// internal/app's server wiring supplies the concrete implementation backed
// by configured providers and persisted model records.
type ModelPool interface {
	Capabilities() []router.ModelCapability
	Sender(modelID string) (providers.Sender, bool)
}

// DomainSetting is one domain's routing policy, the single source both the
// router's DomainPolicy and the rule engine's DomainConfig are derived from
// so the two layers never drift out of sync.
type DomainSetting struct {
	Enabled             bool
	RequireVerifier     bool
	CascadeComplexities []classifier.Complexity
	Drafter             string
	Verifier            string
	Threshold           float64
}

func (d DomainSetting) routerPolicy() router.DomainPolicy {
	var whitelist map[classifier.Complexity]bool
	if len(d.CascadeComplexities) > 0 {
		whitelist = make(map[classifier.Complexity]bool, len(d.CascadeComplexities))
		for _, c := range d.CascadeComplexities {
			whitelist[c] = true
		}
	}
	return router.DomainPolicy{
		RequireVerifier:     d.RequireVerifier,
		CascadeComplexities: whitelist,
		Drafter:             d.Drafter,
		Verifier:            d.Verifier,
		Threshold:           d.Threshold,
		HasThreshold:        d.Threshold > 0,
	}
}

func (d DomainSetting) rulesConfig() rules.DomainConfig {
	return rules.DomainConfig{
		Enabled:             d.Enabled,
		RequireVerifier:     d.RequireVerifier,
		CascadeComplexities: d.CascadeComplexities,
		Drafter:             d.Drafter,
		Verifier:            d.Verifier,
		Threshold:           d.Threshold,
	}
}

// Config bundles the caller-supplied routing policy and optional semantic
// collaborators (spec.md §4.2/§4.5/§4.7's optional embedding-backed
// overrides; nil means "defer to the keyword/heuristic path").
type Config struct {
	Defaults           router.Defaults
	Domains            map[classifier.Domain]DomainSetting
	SemanticDomain     classifier.SemanticDomainFn
	SemanticSimilarity scorer.SemanticSimilarity
	Embed              func(query string) ([]float64, bool)
}

// Request is one caller's cascade request (spec.md §3).
type Request struct {
	RequestID   string
	Query       string
	Tools       []classifier.ToolParams // used for classification only
	ToolSchemas []providers.ToolSchema  // passed through to the provider call
	HasHistory  bool

	TenantID     string
	UserTier     string
	Channel      string
	WorkflowName string
	KPIFlags     map[string]any

	ForceDirect bool
	BudgetScope string
	MaxBudget   float64

	Options providers.CompletionOptions
}

// Result is the executor's output for one request (spec.md §3/§4.8).
type Result struct {
	RequestID       string
	Content         string
	ToolCalls       []providers.ToolCall
	Strategy        router.Strategy
	Domain          classifier.Domain
	Complexity      classifier.Complexity
	DrafterModel    string
	VerifierModel   string
	DraftAccepted   bool
	VerifierUsed    bool
	BudgetForced    bool
	QualityScore    float64
	Provenance      scorer.Provenance
	Threshold       float64
	LatencyMs       float64
	DraftLatencyMs  float64
	VerifyLatencyMs float64
	CostUSD         float64
	DraftCost       float64
	VerifierCost    float64
	Success         bool
	ErrorClass      string
	Reasons         []string
}

// Executor wires every routing/scoring/budget collaborator into the FSM.
// Zero-value collaborator fields are replaced with working in-memory
// defaults by New; only Pool is required.
type Executor struct {
	Pool ModelPool

	Rules    *rules.Engine
	Adaptive *adaptive.Controller
	Budget   *budget.Tracker
	Stats    *stats.Collector
	Health   *health.Tracker
	Bus      *events.Bus
	Recorder Recorder
	Trace    *TraceWriter
	Logger   *slog.Logger

	Config Config

	breakerMu sync.Mutex
	breakers  map[string]*circuitbreaker.Breaker
}

// Option configures an Executor at construction time.
type Option func(*Executor)

func WithRules(r *rules.Engine) Option       { return func(e *Executor) { e.Rules = r } }
func WithAdaptive(a *adaptive.Controller) Option { return func(e *Executor) { e.Adaptive = a } }
func WithBudget(b *budget.Tracker) Option       { return func(e *Executor) { e.Budget = b } }
func WithStats(s *stats.Collector) Option       { return func(e *Executor) { e.Stats = s } }
func WithHealth(h *health.Tracker) Option       { return func(e *Executor) { e.Health = h } }
func WithBus(b *events.Bus) Option              { return func(e *Executor) { e.Bus = b } }
func WithRecorder(r Recorder) Option            { return func(e *Executor) { e.Recorder = r } }
func WithTrace(t *TraceWriter) Option            { return func(e *Executor) { e.Trace = t } }
func WithLogger(l *slog.Logger) Option           { return func(e *Executor) { e.Logger = l } }
func WithConfig(c Config) Option                 { return func(e *Executor) { e.Config = c } }

// New creates an Executor backed by pool, applying options over sensible
// in-memory defaults for every other collaborator.
func New(pool ModelPool, opts ...Option) *Executor {
	e := &Executor{
		Pool:     pool,
		Rules:    rules.New(),
		Adaptive: adaptive.New(),
		Budget:   budget.New(),
		Stats:    stats.NewCollector(),
		Logger:   slog.Default(),
		Config:   Config{Domains: map[classifier.Domain]DomainSetting{}},
		breakers: make(map[string]*circuitbreaker.Breaker),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) breakerFor(providerID string) *circuitbreaker.Breaker {
	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()
	b, ok := e.breakers[providerID]
	if !ok {
		b = circuitbreaker.New()
		e.breakers[providerID] = b
	}
	return b
}

// Run drives one request through the full FSM.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	// INIT
	if req.Query == "" {
		return nil, &cferrors.ValidationError{Field: "query", Message: "must not be empty"}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	scope := req.BudgetScope
	if scope == "" {
		scope = req.RequestID
	}

	// CLASSIFY
	classifyStart := time.Now()
	_, endClassifySpan := tracing.StartStageSpan(ctx, "CLASSIFY")
	classification := classifier.Classify(req.Query, req.Tools, req.HasHistory, e.Config.SemanticDomain)
	domain := classification.DomainResult.Label
	complexity := classification.Complexity.Level
	endClassifySpan()
	logging.StageLogger(e.Logger, req.RequestID, "CLASSIFY")("ok", time.Since(classifyStart),
		slog.String("domain", string(domain)), slog.String("complexity", string(complexity)))

	// RULE+ROUTE
	routeStart := time.Now()
	_, endRouteSpan := tracing.StartStageSpan(ctx, "RULE_ROUTE")
	routing, reasons := e.routeRequest(req, classification, domain)
	endRouteSpan()
	logging.StageLogger(e.Logger, req.RequestID, "RULE_ROUTE")("ok", time.Since(routeStart),
		slog.String("strategy", string(routing.Strategy)))

	// Hard-query memory gate (spec.md §4.7): a query whose embedding is
	// close enough to a remembered hard query skips the drafter entirely.
	if e.Config.Embed != nil {
		if embedding, ok := e.Config.Embed(req.Query); ok && e.Adaptive.IsKnownHard(embedding) {
			routing.Strategy = router.StrategyDirectBest
			reasons = append(reasons, "hard_query_memory_hit")
		}
	}

	limit := effectiveBudgetLimit(req.MaxBudget, routing)

	result := &Result{
		RequestID:  req.RequestID,
		Strategy:   routing.Strategy,
		Domain:     domain,
		Complexity: complexity,
		Threshold:  routing.Threshold,
		Reasons:    append(reasons, routing.Reason...),
	}

	execStart := time.Now()
	_, endExecSpan := tracing.StartStageSpan(ctx, string(routing.Strategy))
	var err error
	switch routing.Strategy {
	case router.StrategyDirectBest, router.StrategyDirectLarge:
		err = e.runDirect(ctx, req, routing, scope, limit, result)
	case router.StrategyDirectCheap:
		err = e.runDirectCheap(ctx, req, routing, scope, limit, result)
	default: // CASCADE, TOOL_CASCADE
		err = e.runCascade(ctx, req, classification, routing, scope, limit, result)
	}
	endExecSpan()
	execOutcome := "ok"
	if err != nil {
		execOutcome = "error"
	}
	logging.StageLogger(e.Logger, req.RequestID, string(routing.Strategy))(execOutcome, time.Since(execStart))

	result.LatencyMs = float64(time.Since(start).Milliseconds())
	result.CostUSD = result.DraftCost + result.VerifierCost
	result.Success = err == nil

	if err != nil {
		var kinder interface{ Kind() cferrors.Kind }
		if errors.As(err, &kinder) {
			result.ErrorClass = string(kinder.Kind())
		} else {
			result.ErrorClass = "unknown_error"
		}
	}

	_, endFinalizeSpan := tracing.StartStageSpan(ctx, "FINALIZE")
	e.finalize(req, result)
	endFinalizeSpan()
	logging.StageLogger(e.Logger, req.RequestID, "FINALIZE")(execOutcome, time.Since(start),
		slog.Float64("quality_score", result.QualityScore), slog.Bool("draft_accepted", result.DraftAccepted))
	return result, err
}

// routeRequest combines the pure router rule-list with the configurable
// rule-engine overlay, the rule engine's opinion winning on conflicts
// (spec.md §4.4: "later layers winning on conflicts"), except that a
// force_direct request keeps the router's DIRECT_BEST strategy.
func (e *Executor) routeRequest(req Request, classification classifier.Classification, domain classifier.Domain) (router.RoutingDecision, []string) {
	policies := map[classifier.Domain]router.DomainPolicy{}
	var domainConfig *rules.DomainConfig

	if ds, ok := e.Config.Domains[domain]; ok {
		policies[domain] = ds.routerPolicy()
		dc := ds.rulesConfig()
		domainConfig = &dc
	}

	routerReq := router.Request{
		Classification: classification,
		Tools:          req.Tools,
		ForceDirect:    req.ForceDirect,
		Domain:         domain,
	}
	routing := router.Route(routerReq, e.Pool.Capabilities(), policies, e.Config.Defaults)

	rulesCtx := rules.Context{
		Complexity:           classification.Complexity.Level,
		ComplexityConfidence: classification.Complexity.Confidence,
		Domain:               domain,
		DomainConfidence:     classification.DomainResult.Confidence,
		DomainConfig:         domainConfig,
		TenantID:             req.TenantID,
		UserTier:             req.UserTier,
		Channel:              req.Channel,
		WorkflowName:         req.WorkflowName,
		KPIFlags:             req.KPIFlags,
	}
	decision := e.Rules.Decide(rulesCtx)
	if decision == nil {
		return routing, nil
	}

	if decision.Strategy != "" && !req.ForceDirect {
		routing.Strategy = router.Strategy(decision.Strategy)
	}
	if len(decision.AllowedModels) > 0 {
		routing.AllowedModels = decision.AllowedModels
	}
	if len(decision.ExcludedModels) > 0 {
		routing.ExcludedModels = decision.ExcludedModels
	}
	if len(decision.PreferredModels) > 0 {
		routing.PreferredModels = decision.PreferredModels
	}
	if len(decision.ForcedModels) > 0 {
		routing.ForcedModels = decision.ForcedModels
	}
	if decision.HasThreshold {
		routing.Threshold = decision.QualityThreshold
	}
	if decision.HasBudget {
		routing.Budget = decision.MaxBudget
		routing.HasBudget = true
	}
	if decision.FailoverChannel != "" {
		routing.FailoverChannel = decision.FailoverChannel
	}
	routing.Metadata = decision.Metadata

	var reasons []string
	if decision.Reason != "" {
		reasons = append(reasons, decision.Reason)
	}
	return routing, reasons
}

func effectiveBudgetLimit(requestCeiling float64, routing router.RoutingDecision) float64 {
	limit := requestCeiling
	if routing.HasBudget && (limit <= 0 || routing.Budget < limit) {
		limit = routing.Budget
	}
	return limit
}

// resolveModel applies the rule engine's forced/preferred/allowed
// constraints on top of the router's preferred drafter/verifier pick.
func resolveModel(preferred string, routing router.RoutingDecision) string {
	if len(routing.ForcedModels) > 0 {
		return routing.ForcedModels[0]
	}
	if preferred != "" && !excluded(preferred, routing.ExcludedModels) &&
		(len(routing.AllowedModels) == 0 || contains(routing.AllowedModels, preferred)) {
		return preferred
	}
	if len(routing.PreferredModels) > 0 {
		return routing.PreferredModels[0]
	}
	if len(routing.AllowedModels) > 0 {
		return routing.AllowedModels[0]
	}
	return preferred
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func excluded(v string, list []string) bool {
	return contains(list, v)
}

// runDirect handles DIRECT_BEST / DIRECT_LARGE: the verifier (or best
// tool-capable model) is called directly, skipping the drafter entirely.
func (e *Executor) runDirect(ctx context.Context, req Request, routing router.RoutingDecision, scope string, limit float64, result *Result) error {
	model := resolveModel(routing.Verifier, routing)
	if model == "" {
		return &cferrors.RoutingError{Reason: "no verifier/candidate model resolved for direct strategy"}
	}
	resp, err := e.callModel(ctx, model, req, scope, limit, "verify")
	if err != nil {
		return err
	}
	result.VerifierModel = model
	result.VerifierUsed = true
	result.VerifierCost += resp.CostUSD
	result.VerifyLatencyMs = resp.LatencyMs
	return e.applyResponse(req, result, resp)
}

// runDirectCheap handles DIRECT_CHEAP: the drafter's response is the final
// answer, with no scoring pass at all.
func (e *Executor) runDirectCheap(ctx context.Context, req Request, routing router.RoutingDecision, scope string, limit float64, result *Result) error {
	model := resolveModel(routing.Drafter, routing)
	if model == "" {
		return &cferrors.RoutingError{Reason: "no drafter/candidate model resolved for direct_cheap strategy"}
	}
	resp, err := e.callModel(ctx, model, req, scope, limit, "draft")
	if err != nil {
		return err
	}
	result.DrafterModel = model
	result.DraftCost += resp.CostUSD
	result.DraftLatencyMs = resp.LatencyMs
	return e.applyResponse(req, result, resp)
}

// runCascade handles CASCADE / TOOL_CASCADE: draft, score, accept or
// escalate to the verifier (spec.md §4.5/§4.6).
func (e *Executor) runCascade(ctx context.Context, req Request, classification classifier.Classification, routing router.RoutingDecision, scope string, limit float64, result *Result) error {
	drafterModel := resolveModel(routing.Drafter, routing)
	if drafterModel == "" {
		return &cferrors.RoutingError{Reason: "no drafter model resolved for cascade strategy"}
	}
	result.DrafterModel = drafterModel

	draftResp, err := e.callModel(ctx, drafterModel, req, scope, limit, "draft")
	if err != nil {
		return err
	}
	result.DraftCost += draftResp.CostUSD
	result.DraftLatencyMs = draftResp.LatencyMs

	q, provenance := scorer.Score(req.Query, draftResp, req.Options.Temperature, e.Config.SemanticSimilarity)
	effectiveThreshold := e.Adaptive.EffectiveThreshold(string(result.Domain), routing.Threshold)
	result.QualityScore = q
	result.Provenance = provenance
	result.Threshold = effectiveThreshold

	if scorer.Accepted(q, effectiveThreshold) {
		result.DraftAccepted = true
		if err := e.applyResponse(req, result, draftResp); err != nil {
			return err
		}
		e.Adaptive.Record(string(result.Domain), adaptive.Outcome{Confidence: q, Accepted: true})
		if e.Recorder != nil {
			e.Recorder.RecordDraftAccepted(string(result.Domain))
		}
		return nil
	}

	verifierModel := resolveModel(routing.Verifier, routing)
	if verifierModel == "" {
		// No verifier configured to escalate to: the draft is the only
		// answer available, so it stands despite the low score.
		result.DraftAccepted = true
		if err := e.applyResponse(req, result, draftResp); err != nil {
			return err
		}
		e.Adaptive.Record(string(result.Domain), adaptive.Outcome{Confidence: q, Accepted: true})
		return nil
	}

	// Budget-forced acceptance (spec.md §4.6): if the verifier call cannot
	// fit the remaining budget, accept the draft rather than fail outright.
	projected := 0.0
	if sender, ok := e.Pool.Sender(verifierModel); ok {
		promptTokens := providers.EstimateTokens(req.Query)
		projected = sender.EstimateCost(promptTokens, promptTokens, verifierModel)
	}
	if limit > 0 && !e.Budget.Fits(scope, limit, projected) {
		result.DraftAccepted = true
		result.BudgetForced = true
		if err := e.applyResponse(req, result, draftResp); err != nil {
			return err
		}
		e.Adaptive.Record(string(result.Domain), adaptive.Outcome{Confidence: q, Accepted: true, VerifierAgreed: false})
		if e.Bus != nil {
			e.Bus.Publish(events.Event{
				Type:      events.EventBudgetForced,
				RequestID: req.RequestID,
				Domain:    string(result.Domain),
				Reason:    "verifier call would exceed remaining budget",
			})
		}
		return nil
	}

	result.VerifierModel = verifierModel
	result.VerifierUsed = true
	verifierResp, err := e.callModel(ctx, verifierModel, req, scope, limit, "verify")
	if err != nil {
		return err
	}
	result.VerifierCost += verifierResp.CostUSD
	result.VerifyLatencyMs = verifierResp.LatencyMs
	if err := e.applyResponse(req, result, verifierResp); err != nil {
		return err
	}

	agreed := false
	if e.Config.SemanticSimilarity != nil {
		if sim, ok := e.Config.SemanticSimilarity(draftResp.Content, verifierResp.Content); ok {
			agreed = sim >= 0.8
		}
	}
	e.Adaptive.Record(string(result.Domain), adaptive.Outcome{Confidence: q, Accepted: false, VerifierAgreed: agreed})
	if !agreed {
		if embedding, ok := e.embeddingFor(req); ok {
			e.Adaptive.RecordHardQuery(embedding)
		}
	}
	if e.Bus != nil {
		e.Bus.Publish(events.Event{
			Type:       events.EventDraftRejected,
			RequestID:  req.RequestID,
			Domain:     string(result.Domain),
			Confidence: q,
			Threshold:  effectiveThreshold,
		})
	}
	return nil
}

func (e *Executor) embeddingFor(req Request) ([]float64, bool) {
	if e.Config.Embed == nil {
		return nil, false
	}
	return e.Config.Embed(req.Query)
}

// applyResponse validates resp's tool calls against the schemas the request
// offered and, if they pass, copies content/tool calls onto result (spec.md
// §4.6/§8 invariant 3: every tool call name and argument key must come from
// the offered tool schemas).
func (e *Executor) applyResponse(req Request, result *Result, resp *providers.ModelResponse) error {
	if err := validateToolCalls(resp.ToolCalls, req.ToolSchemas); err != nil {
		return err
	}
	result.Content = resp.Content
	result.ToolCalls = resp.ToolCalls
	return nil
}

// validateToolCalls rejects any call whose name isn't one of schemas, or
// whose argument keys aren't top-level properties of that tool's schema.
func validateToolCalls(calls []providers.ToolCall, schemas []providers.ToolSchema) error {
	if len(calls) == 0 {
		return nil
	}
	byName := make(map[string]providers.ToolSchema, len(schemas))
	for _, s := range schemas {
		byName[s.Name] = s
	}
	for _, call := range calls {
		schema, ok := byName[call.Name]
		if !ok {
			return &cferrors.ValidationError{Field: "tool_call.name", Message: fmt.Sprintf("%q is not one of the offered tools", call.Name)}
		}
		for key := range call.Args {
			if _, ok := schema.Parameters.Properties[key]; !ok {
				return &cferrors.ValidationError{Field: "tool_call.args", Message: fmt.Sprintf("%q: argument %q is not a property of this tool's schema", call.Name, key)}
			}
		}
	}
	return nil
}

// callModel issues one outbound completion, guarding it with the health
// tracker and circuit breaker and charging its cost against scope's budget.
func (e *Executor) callModel(ctx context.Context, modelID string, req Request, scope string, limit float64, stage string) (*providers.ModelResponse, error) {
	sender, ok := e.Pool.Sender(modelID)
	if !ok {
		return nil, &cferrors.RoutingError{Reason: "no sender registered for model " + modelID}
	}

	providerID := sender.ID()
	breaker := e.breakerFor(providerID)
	if e.Health != nil && !e.Health.IsAvailable(providerID) {
		return nil, &cferrors.ProviderError{Provider: providerID, Message: "provider in cooldown", Retriable: true}
	}
	if !breaker.Allow() {
		return nil, &cferrors.ProviderError{Provider: providerID, Message: "circuit breaker open", Retriable: true}
	}

	if limit > 0 {
		promptTokens := providers.EstimateTokens(req.Query)
		projected := sender.EstimateCost(promptTokens, promptTokens, modelID)
		if err := e.Budget.CheckDrafterFits(scope, limit, projected); err != nil {
			return nil, err
		}
	}

	opts := req.Options
	opts.Tools = req.ToolSchemas
	messages := []providers.Message{{Role: "user", Content: req.Query}}

	start := time.Now()
	resp, err := sender.Complete(ctx, modelID, messages, opts)
	latencyMs := float64(time.Since(start).Milliseconds())

	if err != nil {
		breaker.RecordFailure()
		if e.Health != nil {
			e.Health.RecordError(providerID, err.Error())
		}
		var rle *cferrors.RateLimitError
		if errors.As(err, &rle) && e.Recorder != nil {
			e.Recorder.RecordRateLimited()
		}
		return nil, err
	}

	breaker.RecordSuccess()
	if e.Health != nil {
		e.Health.RecordSuccess(providerID, latencyMs)
	}
	e.Budget.Charge(scope, limit, resp.CostUSD)
	if e.Recorder != nil {
		e.Recorder.RecordCost(modelID, resp.CostUSD)
		e.Recorder.RecordLatency(stage, latencyMs)
	}
	return resp, nil
}

// finalize records the completed request into the stats collector, the
// decision-trace log, and the request-counter recorder (spec.md §4.8/§6).
func (e *Executor) finalize(req Request, result *Result) {
	if e.Recorder != nil {
		e.Recorder.RecordRequest(string(result.Strategy), string(result.Domain))
	}

	if e.Stats != nil {
		e.Stats.Record(stats.Snapshot{
			ModelID:       firstNonEmpty(result.VerifierModel, result.DrafterModel),
			Domain:        string(result.Domain),
			Strategy:      string(result.Strategy),
			LatencyMs:     result.LatencyMs,
			CostUSD:       result.CostUSD,
			Success:       result.Success,
			DraftAccepted: result.DraftAccepted,
			VerifierUsed:  result.VerifierUsed,
		})
	}

	if e.Trace != nil {
		_ = e.Trace.Write(TraceEntry{
			RequestID:     result.RequestID,
			Domain:        string(result.Domain),
			Complexity:    string(result.Complexity),
			Strategy:      string(result.Strategy),
			DrafterModel:  result.DrafterModel,
			VerifierModel:   result.VerifierModel,
			DraftAccepted:   result.DraftAccepted,
			VerifierUsed:    result.VerifierUsed,
			BudgetForced:    result.BudgetForced,
			QualityScore:    result.QualityScore,
			Provenance:      string(result.Provenance),
			Threshold:       result.Threshold,
			LatencyMs:       result.LatencyMs,
			DraftLatencyMs:  result.DraftLatencyMs,
			VerifyLatencyMs: result.VerifyLatencyMs,
			CostUSD:         result.CostUSD,
			DraftCost:       result.DraftCost,
			VerifierCost:    result.VerifierCost,
			Success:         result.Success,
			ErrorClass:      result.ErrorClass,
			Reasons:         result.Reasons,
		})
	}

	if e.Bus != nil {
		evType := events.EventRouteSuccess
		if !result.Success {
			evType = events.EventRouteError
		}
		e.Bus.Publish(events.Event{
			Type:       evType,
			RequestID:  result.RequestID,
			Domain:     string(result.Domain),
			ModelID:    firstNonEmpty(result.VerifierModel, result.DrafterModel),
			LatencyMs:  result.LatencyMs,
			CostUSD:    result.CostUSD,
			ErrorClass: result.ErrorClass,
		})
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
