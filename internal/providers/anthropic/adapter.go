// Package anthropic adapts Anthropic's Messages API to providers.Sender.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jordanhubbard/cascadeflow/internal/cferrors"
	"github.com/jordanhubbard/cascadeflow/internal/providers"
)

// Adapter implements providers.Sender for Anthropic's Messages API.
type Adapter struct {
	id         string
	apiKey     string
	baseURL    string
	client     *http.Client
	inputRate  float64 // USD per 1K input tokens
	outputRate float64 // USD per 1K output tokens
}

// Option configures optional Adapter behaviour.
type Option func(*Adapter)

// WithTimeout overrides the HTTP client timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.client.Timeout = d }
}

// WithRates sets the separate per-1K-token input and output prices used by
// EstimateCost.
func WithRates(inputPer1K, outputPer1K float64) Option {
	return func(a *Adapter) {
		a.inputRate = inputPer1K
		a.outputRate = outputPer1K
	}
}

// New creates an Anthropic adapter identified by id (e.g. "anthropic-haiku").
func New(id, apiKey, baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		id:      id,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) SupportsLogprobs() bool { return false }

// HealthEndpoint satisfies health.Probeable.
func (a *Adapter) HealthEndpoint() string { return a.baseURL + "/v1/messages" }

func (a *Adapter) EstimateCost(promptTokens, completionTokens int, model string) float64 {
	if a.inputRate == 0 && a.outputRate == 0 {
		return 0
	}
	return providers.SplitCost(promptTokens, completionTokens, a.inputRate, a.outputRate)
}

func (a *Adapter) Complete(ctx context.Context, model string, messages []providers.Message, opts providers.CompletionOptions) (*providers.ModelResponse, error) {
	start := time.Now()

	msgs := make([]map[string]string, 0, len(messages))
	system := opts.SystemPrompt
	for _, m := range messages {
		if m.Role == "system" {
			if system == "" {
				system = m.Content
			}
			continue
		}
		msgs = append(msgs, map[string]string{"role": m.Role, "content": m.Content})
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	payload := map[string]any{
		"model":      model,
		"messages":   msgs,
		"max_tokens": maxTokens,
	}
	if system != "" {
		payload["system"] = system
	}
	if opts.Temperature > 0 {
		payload["temperature"] = opts.Temperature
	}
	if len(opts.Tools) > 0 {
		tools := make([]map[string]any, len(opts.Tools))
		for i, t := range opts.Tools {
			tools[i] = map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			}
		}
		payload["tools"] = tools
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}

	body, err := providers.DoRequest(ctx, a.client, a.baseURL+"/v1/messages", a.id, model, headers, payload)
	if err != nil {
		return nil, a.classify(err)
	}

	content, toolCalls, finishReason := parseMessagesResponse(body)
	resp := &providers.ModelResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		Model:        model,
		Provider:     a.id,
		LatencyMs:    float64(time.Since(start).Milliseconds()),
		FinishReason: finishReason,
	}
	if content == "" && len(toolCalls) == 0 {
		return nil, &cferrors.ModelError{Model: model, Provider: a.id, Message: "empty completion content"}
	}
	providers.FillFallbackLogprobs(resp, opts.Temperature)
	resp.Tokens.PromptTokens = providers.EstimateTokens(system + joinContent(messages))
	resp.Tokens.CompletionTokens = providers.EstimateTokens(content)
	resp.CostUSD = a.EstimateCost(resp.Tokens.PromptTokens, resp.Tokens.CompletionTokens, model)
	return resp, nil
}

func (a *Adapter) classify(err error) error {
	var se *providers.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429 || se.StatusCode == 529:
			return &cferrors.RateLimitError{Provider: a.id, RetryAfterSecs: se.RetryAfter, Err: err}
		case se.StatusCode >= 500:
			return &cferrors.ProviderError{Provider: a.id, Message: "transient upstream failure", Retriable: true, Err: err}
		case strings.Contains(se.Body, "prompt is too long") || strings.Contains(se.Body, "prompt_too_long"):
			return &cferrors.ModelError{Provider: a.id, Message: "context window exceeded", Err: err}
		case se.StatusCode == 401 || se.StatusCode == 403:
			return &cferrors.ProviderError{Provider: a.id, Message: "invalid credentials", Retriable: false, Err: err}
		}
	}
	return &cferrors.ProviderError{Provider: a.id, Message: "request failed", Retriable: false, Err: err}
}

func joinContent(messages []providers.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
		sb.WriteByte(' ')
	}
	return sb.String()
}
