// Package local adapts an OpenAI-compatible self-hosted deployment (e.g. a
// local vLLM/Ollama server) to providers.Sender. Such deployments are
// zero-cost per spec.md §4.1: EstimateCost always returns 0.
package local

import (
	"context"
	"time"

	"github.com/jordanhubbard/cascadeflow/internal/providers"
	"github.com/jordanhubbard/cascadeflow/internal/providers/openai"
)

// Adapter wraps an openai.Adapter pointed at a local base URL, pinning cost
// to zero regardless of the inner adapter's configured rates.
type Adapter struct {
	inner *openai.Adapter
	id    string
}

// New creates a local zero-cost adapter. baseURL typically points at an
// in-cluster vLLM or Ollama OpenAI-compatible endpoint.
func New(id, baseURL string) *Adapter {
	return &Adapter{
		id:    id,
		inner: openai.New(id, "unused", baseURL, openai.WithLogprobs(), openai.WithTimeout(30*time.Second)),
	}
}

func (a *Adapter) ID() string             { return a.id }
func (a *Adapter) SupportsLogprobs() bool { return true }
func (a *Adapter) HealthEndpoint() string { return a.inner.HealthEndpoint() }

func (a *Adapter) EstimateCost(promptTokens, completionTokens int, model string) float64 { return 0 }

func (a *Adapter) Complete(ctx context.Context, model string, messages []providers.Message, opts providers.CompletionOptions) (*providers.ModelResponse, error) {
	resp, err := a.inner.Complete(ctx, model, messages, opts)
	if err != nil {
		return nil, err
	}
	resp.CostUSD = 0
	resp.Provider = a.id
	return resp, nil
}
