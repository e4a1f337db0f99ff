// Package openai adapts the OpenAI-compatible chat-completions API (also
// used by many self-hosted and third-party gateways) to providers.Sender.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jordanhubbard/cascadeflow/internal/cferrors"
	"github.com/jordanhubbard/cascadeflow/internal/providers"
)

// Adapter implements providers.Sender for an OpenAI-shaped chat API.
type Adapter struct {
	id         string
	apiKey     string
	baseURL    string
	client     *http.Client
	inputRate  float64
	outputRate float64
	logprobs   bool
}

// Option configures optional Adapter behaviour.
type Option func(*Adapter)

func WithTimeout(d time.Duration) Option { return func(a *Adapter) { a.client.Timeout = d } }

func WithRates(inputPer1K, outputPer1K float64) Option {
	return func(a *Adapter) {
		a.inputRate = inputPer1K
		a.outputRate = outputPer1K
	}
}

// WithLogprobs marks this deployment as one that natively returns logprobs
// (vLLM and most OpenAI chat-completions deployments do).
func WithLogprobs() Option { return func(a *Adapter) { a.logprobs = true } }

func New(id, apiKey, baseURL string, opts ...Option) *Adapter {
	a := &Adapter{id: id, apiKey: apiKey, baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) ID() string                { return a.id }
func (a *Adapter) SupportsLogprobs() bool    { return a.logprobs }
func (a *Adapter) HealthEndpoint() string    { return a.baseURL + "/v1/models" }

func (a *Adapter) EstimateCost(promptTokens, completionTokens int, model string) float64 {
	if a.inputRate == 0 && a.outputRate == 0 {
		return 0
	}
	return providers.SplitCost(promptTokens, completionTokens, a.inputRate, a.outputRate)
}

func (a *Adapter) Complete(ctx context.Context, model string, messages []providers.Message, opts providers.CompletionOptions) (*providers.ModelResponse, error) {
	start := time.Now()

	msgs := make([]map[string]string, len(messages))
	for i, m := range messages {
		msgs[i] = map[string]string{"role": m.Role, "content": m.Content}
	}

	payload := map[string]any{
		"model":    model,
		"messages": msgs,
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		payload["temperature"] = opts.Temperature
	}
	if a.logprobs && opts.Logprobs {
		payload["logprobs"] = true
		if opts.TopLogprobs > 0 {
			payload["top_logprobs"] = opts.TopLogprobs
		}
	}
	if len(opts.Tools) > 0 {
		tools := make([]map[string]any, len(opts.Tools))
		for i, t := range opts.Tools {
			tools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			}
		}
		payload["tools"] = tools
		if opts.ToolChoice != "" {
			payload["tool_choice"] = opts.ToolChoice
		}
	}

	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}

	body, err := providers.DoRequest(ctx, a.client, a.baseURL+"/v1/chat/completions", a.id, model, headers, payload)
	if err != nil {
		return nil, a.classify(err)
	}

	content, toolCalls, finishReason, logprobs, topLogprobs := parseChatCompletion(body)
	if content == "" && len(toolCalls) == 0 {
		return nil, &cferrors.ModelError{Model: model, Provider: a.id, Message: "empty completion content"}
	}
	resp := &providers.ModelResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		Model:        model,
		Provider:     a.id,
		LatencyMs:    float64(time.Since(start).Milliseconds()),
		FinishReason: finishReason,
	}
	if len(logprobs) > 0 {
		resp.HasLogprobs = true
		resp.Logprobs = logprobs
		resp.TopLogprobs = topLogprobs
	} else {
		providers.FillFallbackLogprobs(resp, opts.Temperature)
	}
	resp.Tokens.PromptTokens = providers.EstimateTokens(joinContent(messages))
	resp.Tokens.CompletionTokens = providers.EstimateTokens(content)
	resp.CostUSD = a.EstimateCost(resp.Tokens.PromptTokens, resp.Tokens.CompletionTokens, model)
	return resp, nil
}

func (a *Adapter) classify(err error) error {
	var se *providers.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429:
			return &cferrors.RateLimitError{Provider: a.id, RetryAfterSecs: se.RetryAfter, Err: err}
		case se.StatusCode >= 500:
			return &cferrors.ProviderError{Provider: a.id, Message: "transient upstream failure", Retriable: true, Err: err}
		case strings.Contains(se.Body, "context_length_exceeded"):
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

type chatCompletionResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		Logprobs *struct {
			Content []struct {
				Token       string  `json:"token"`
				Logprob     float64 `json:"logprob"`
				TopLogprobs []struct {
					Token   string  `json:"token"`
					Logprob float64 `json:"logprob"`
				} `json:"top_logprobs"`
			} `json:"content"`
		} `json:"logprobs"`
	} `json:"choices"`
}

func parseChatCompletion(body []byte) (content string, toolCalls []providers.ToolCall, finishReason string, logprobs []float64, topLogprobs []map[string]float64) {
	var r chatCompletionResponse
	if err := json.Unmarshal(body, &r); err != nil || len(r.Choices) == 0 {
		return "", nil, "", nil, nil
	}
	choice := r.Choices[0]
	content = choice.Message.Content
	finishReason = choice.FinishReason
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		toolCalls = append(toolCalls, providers.ToolCall{Name: tc.Function.Name, Args: args})
	}
	if choice.Logprobs != nil {
		for _, tok := range choice.Logprobs.Content {
			logprobs = append(logprobs, tok.Logprob)
			m := map[string]float64{tok.Token: tok.Logprob}
			for _, alt := range tok.TopLogprobs {
				m[alt.Token] = alt.Logprob
			}
			topLogprobs = append(topLogprobs, m)
		}
	}
	return content, toolCalls, finishReason, logprobs, topLogprobs
}
