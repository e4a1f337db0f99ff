// Package cferrors defines the typed error taxonomy that every CascadeFlow
// component raises. Kinds are stable, machine-readable, and orthogonal to
// where in the pipeline they originate; callers recover the concrete type
// with errors.As.
package cferrors

import "fmt"

// Kind is a stable machine-readable error classification.
type Kind string

const (
	KindConfig            Kind = "config_error"
	KindProvider          Kind = "provider_error"
	KindModel             Kind = "model_error"
	KindRateLimit         Kind = "rate_limit_error"
	KindBudgetExceeded    Kind = "budget_exceeded_error"
	KindQualityThreshold  Kind = "quality_threshold_error"
	KindRouting           Kind = "routing_error"
	KindValidation        Kind = "validation_error"
)

// ConfigError signals a fatal startup configuration problem.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Kind() Kind { return KindConfig }

// ProviderError wraps a back-end failure. Retriable indicates whether the
// executor may retry locally (transient) as opposed to bubbling up (fatal).
type ProviderError struct {
	Provider  string
	Message   string
	Retriable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }
func (e *ProviderError) Kind() Kind    { return KindProvider }

// ModelError signals a model-level execution failure distinct from
// transport-level provider failures (e.g. malformed completion payload).
type ModelError struct {
	Model    string
	Provider string
	Message  string
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %q (provider %q): %s", e.Model, e.Provider, e.Message)
}

func (e *ModelError) Unwrap() error { return e.Err }
func (e *ModelError) Kind() Kind    { return KindModel }

// RateLimitError signals a 429/quota response. RetryAfterSecs is 0 when the
// back end did not supply a Retry-After hint.
type RateLimitError struct {
	Provider       string
	RetryAfterSecs int
	Err            error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider %q rate limited, retry after %ds", e.Provider, e.RetryAfterSecs)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
func (e *RateLimitError) Kind() Kind    { return KindRateLimit }

// BudgetExceededError signals that a request's remaining budget cannot cover
// the next outbound call.
type BudgetExceededError struct {
	Current   float64
	Limit     float64
	Remaining float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: spent %.6f of %.6f (remaining %.6f)", e.Current, e.Limit, e.Remaining)
}

func (e *BudgetExceededError) Kind() Kind { return KindBudgetExceeded }

// QualityThresholdError reports a draft that scored below its effective
// quality threshold. The cascade executor itself decides the SCORE -> VERIFY
// transition with a direct scorer.Accepted boolean check rather than this
// error, since that decision never fails or needs unwrapping; this type
// exists for callers/tests that want to report the same condition through
// the cferrors.Kind taxonomy (KindQualityThreshold) instead of a bool.
type QualityThresholdError struct {
	Confidence float64
	Threshold  float64
}

func (e *QualityThresholdError) Error() string {
	return fmt.Sprintf("confidence %.3f below threshold %.3f", e.Confidence, e.Threshold)
}

func (e *QualityThresholdError) Kind() Kind { return KindQualityThreshold }

// RoutingError signals that the router or rule engine could not produce a
// usable decision (e.g. empty candidate intersection with no fallback).
type RoutingError struct {
	Reason string
}

func (e *RoutingError) Error() string { return fmt.Sprintf("routing error: %s", e.Reason) }
func (e *RoutingError) Kind() Kind    { return KindRouting }

// ValidationError signals malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() Kind { return KindValidation }
