package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jordanhubbard/cascadeflow/internal/cascade"
	"github.com/jordanhubbard/cascadeflow/internal/cferrors"
	"github.com/jordanhubbard/cascadeflow/internal/classifier"
	"github.com/jordanhubbard/cascadeflow/internal/providers"
)

// cascadeRequest is the wire shape of a /v1/cascade POST body.
type cascadeRequest struct {
	RequestID    string         `json:"request_id"`
	Query        string         `json:"query"`
	Tools        []toolSchema   `json:"tools"`
	HasHistory   bool           `json:"has_history"`
	TenantID     string         `json:"tenant_id"`
	UserTier     string         `json:"user_tier"`
	Channel      string         `json:"channel"`
	WorkflowName string         `json:"workflow_name"`
	KPIFlags     map[string]any `json:"kpi_flags"`
	ForceDirect  bool           `json:"force_direct"`
	MaxBudget    float64        `json:"max_budget"`
	MaxTokens    int            `json:"max_tokens"`
	Temperature  float64        `json:"temperature"`
}

type toolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// cascadeResponse is the wire shape of a /v1/cascade response.
type cascadeResponse struct {
	RequestID     string             `json:"request_id"`
	Content       string             `json:"content"`
	ToolCalls     []providers.ToolCall `json:"tool_calls,omitempty"`
	Strategy      string             `json:"strategy"`
	Domain        string             `json:"domain"`
	Complexity    string             `json:"complexity"`
	DrafterModel  string             `json:"drafter_model,omitempty"`
	VerifierModel string             `json:"verifier_model,omitempty"`
	DraftAccepted bool               `json:"draft_accepted"`
	VerifierUsed  bool               `json:"verifier_used"`
	QualityScore  float64            `json:"quality_score"`
	Threshold     float64            `json:"threshold"`
	LatencyMs     float64            `json:"latency_ms"`
	CostUSD       float64            `json:"cost_usd"`
	Reasons       []string           `json:"reasons,omitempty"`
}

// HandleCascade serves SPEC_FULL.md's /v1/cascade operation: decode the
// request, run it through the cascade executor, and report the result (or
// a typed error) as JSON.
func (s *Server) HandleCascade(w http.ResponseWriter, r *http.Request) {
	var body cascadeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, &cferrors.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}

	req := cascade.Request{
		RequestID:    body.RequestID,
		Query:        body.Query,
		HasHistory:   body.HasHistory,
		TenantID:     body.TenantID,
		UserTier:     body.UserTier,
		Channel:      body.Channel,
		WorkflowName: body.WorkflowName,
		KPIFlags:     body.KPIFlags,
		ForceDirect:  body.ForceDirect,
		MaxBudget:    body.MaxBudget,
		Options: providers.CompletionOptions{
			MaxTokens:   body.MaxTokens,
			Temperature: body.Temperature,
		},
	}
	for _, t := range body.Tools {
		req.Tools = append(req.Tools, classifier.ToolParams{Name: t.Name, ParamCount: len(t.Parameters)})
		req.ToolSchemas = append(req.ToolSchemas, providers.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
		})
	}

	result, err := s.executor.Run(r.Context(), req)
	if err != nil {
		s.logger.Warn("cascade request failed", slog.String("request_id", req.RequestID), slog.String("error", err.Error()))
		writeError(w, s.logger, err)
		return
	}

	resp := cascadeResponse{
		RequestID:     result.RequestID,
		Content:       result.Content,
		ToolCalls:     result.ToolCalls,
		Strategy:      string(result.Strategy),
		Domain:        string(result.Domain),
		Complexity:    string(result.Complexity),
		DrafterModel:  result.DrafterModel,
		VerifierModel: result.VerifierModel,
		DraftAccepted: result.DraftAccepted,
		VerifierUsed:  result.VerifierUsed,
		QualityScore:  result.QualityScore,
		Threshold:     result.Threshold,
		LatencyMs:     result.LatencyMs,
		CostUSD:       result.CostUSD,
		Reasons:       result.Reasons,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	kind := "unknown_error"

	var kinder interface{ Kind() cferrors.Kind }
	if errors.As(err, &kinder) {
		kind = string(kinder.Kind())
		switch kinder.Kind() {
		case cferrors.KindValidation:
			status = http.StatusBadRequest
		case cferrors.KindRateLimit:
			status = http.StatusTooManyRequests
		case cferrors.KindBudgetExceeded:
			status = http.StatusPaymentRequired
		case cferrors.KindRouting, cferrors.KindConfig:
			status = http.StatusUnprocessableEntity
		case cferrors.KindProvider, cferrors.KindModel:
			status = http.StatusBadGateway
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":      err.Error(),
		"error_class": kind,
	})
}
