package cferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"config", &ConfigError{Field: "CASCADEFLOW_DB_DSN", Message: "must not be empty"}, KindConfig},
		{"provider", &ProviderError{Provider: "anthropic", Message: "timeout"}, KindProvider},
		{"model", &ModelError{Model: "haiku", Provider: "anthropic", Message: "malformed completion"}, KindModel},
		{"rate_limit", &RateLimitError{Provider: "openai", RetryAfterSecs: 5}, KindRateLimit},
		{"budget_exceeded", &BudgetExceededError{Current: 1, Limit: 0.5, Remaining: -0.5}, KindBudgetExceeded},
		{"quality_threshold", &QualityThresholdError{Confidence: 0.4, Threshold: 0.6}, KindQualityThreshold},
		{"routing", &RoutingError{Reason: "empty candidate intersection"}, KindRouting},
		{"validation", &ValidationError{Field: "query", Message: "must not be empty"}, KindValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var kinder interface{ Kind() Kind }
			assert.True(t, errors.As(tc.err, &kinder))
			assert.Equal(t, tc.kind, kinder.Kind())
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ProviderError{Provider: "anthropic", Message: "request failed", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestModelErrorUnwrap(t *testing.T) {
	cause := errors.New("invalid json")
	err := &ModelError{Model: "opus", Provider: "anthropic", Message: "decode failed", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestRateLimitErrorUnwrap(t *testing.T) {
	cause := errors.New("429")
	err := &RateLimitError{Provider: "openai", RetryAfterSecs: 10, Err: cause}
	assert.ErrorIs(t, err, cause)
}
