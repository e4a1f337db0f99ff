package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jordanhubbard/cascadeflow/internal/cascade"
	"github.com/jordanhubbard/cascadeflow/internal/classifier"
	"github.com/jordanhubbard/cascadeflow/internal/providers"
	"github.com/jordanhubbard/cascadeflow/internal/rules"
	"github.com/jordanhubbard/cascadeflow/internal/store"
	"github.com/jordanhubbard/cascadeflow/internal/vault"
)

// credProvider/credModel/credFile mirror the teacher's declarative
// credentials-file shape (~/.tokenhub/credentials), retargeted to
// CascadeFlow's three provider kinds.
type credProvider struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // anthropic, openai, local
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Enabled *bool  `json:"enabled"` // nil = true
}

type credModel struct {
	ID               string  `json:"id"`
	ProviderID       string  `json:"provider_id"`
	SupportsTools    bool    `json:"supports_tools"`
	CostPer1KIn      float64 `json:"cost_per_1k_in"`
	CostPer1KOut     float64 `json:"cost_per_1k_out"`
	MaxContextTokens int     `json:"max_context_tokens"`
	Enabled          *bool   `json:"enabled"` // nil = true
}

type credFile struct {
	Providers []credProvider `json:"providers"`
	Models    []credModel    `json:"models"`
}

// loadCredentialsFile reads the declarative credentials file (default
// ~/.cascadeflow/credentials), registers its providers/models into pool,
// and persists both to db/vault so they survive a restart even if the
// file is later removed. The file must be owner-readable only.
func loadCredentialsFile(path string, pool *modelPool, v *vault.Vault, db store.Store, timeout time.Duration, logger *slog.Logger) []providers.Sender {
	var registered []providers.Sender
	if path == "" {
		return registered
	}

	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("credentials file stat error", slog.String("path", path), slog.String("error", err.Error()))
		}
		return registered
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		logger.Warn("credentials file has insecure permissions, skipping",
			slog.String("path", path), slog.String("mode", fmt.Sprintf("%04o", mode)))
		return registered
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read credentials file", slog.String("path", path), slog.String("error", err.Error()))
		return registered
	}
	var creds credFile
	if err := json.Unmarshal(data, &creds); err != nil {
		logger.Warn("failed to parse credentials file", slog.String("path", path), slog.String("error", err.Error()))
		return registered
	}

	ctx := context.Background()
	senders := map[string]providers.Sender{}

	for _, p := range creds.Providers {
		if p.ID == "" || p.BaseURL == "" {
			logger.Warn("skipping credentials provider: id and base_url required", slog.String("id", p.ID))
			continue
		}
		enabled := p.Enabled == nil || *p.Enabled

		credStore := "none"
		if p.APIKey != "" && v != nil && !v.IsLocked() {
			if err := v.SetProviderAPIKey(p.ID, p.APIKey); err != nil {
				logger.Warn("failed to store api key in vault", slog.String("provider", p.ID), slog.String("error", err.Error()))
			} else {
				credStore = "vault"
			}
		}

		if db != nil {
			rec := store.ProviderRecord{ID: p.ID, Type: p.Type, BaseURL: p.BaseURL, CredStore: credStore, Enabled: enabled}
			if err := db.UpsertProvider(ctx, rec); err != nil {
				logger.Warn("failed to persist credentials provider", slog.String("provider", p.ID), slog.String("error", err.Error()))
			}
		}

		adapter, err := newProviderAdapter(p.Type, p.ID, p.APIKey, p.BaseURL, timeout)
		if err != nil {
			logger.Warn("skipping credentials provider: unknown type", slog.String("provider", p.ID), slog.String("type", p.Type))
			continue
		}
		senders[p.ID] = adapter
		registered = append(registered, adapter)
		logger.Info("registered provider from credentials file", slog.String("provider", p.ID), slog.String("base_url", p.BaseURL), slog.String("cred_store", credStore))
	}

	if v != nil && !v.IsLocked() && db != nil {
		if salt := v.Salt(); salt != nil {
			if err := db.SaveVaultBlob(ctx, salt, v.Export()); err != nil {
				logger.Warn("failed to persist vault after credentials load", slog.String("error", err.Error()))
			}
		}
	}

	for _, m := range creds.Models {
		if m.ID == "" || m.ProviderID == "" {
			logger.Warn("skipping credentials model: id and provider_id required", slog.String("id", m.ID))
			continue
		}
		enabled := m.Enabled == nil || *m.Enabled
		rec := store.ModelRecord{
			ID: m.ID, ProviderID: m.ProviderID, SupportsTools: m.SupportsTools,
			CostPer1KIn: m.CostPer1KIn, CostPer1KOut: m.CostPer1KOut,
			MaxContextTokens: m.MaxContextTokens, Enabled: enabled,
		}
		if db != nil {
			if err := db.UpsertModel(ctx, rec); err != nil {
				logger.Warn("failed to persist credentials model", slog.String("model", m.ID), slog.String("error", err.Error()))
			}
		}
		sender, ok := senders[m.ProviderID]
		if !ok {
			logger.Warn("skipping credentials model: unknown provider", slog.String("model", m.ID), slog.String("provider", m.ProviderID))
			continue
		}
		pool.registerModel(rec, sender)
		logger.Info("registered model from credentials file", slog.String("model", m.ID), slog.String("provider", m.ProviderID))
	}

	logger.Info("loaded credentials file", slog.String("path", path),
		slog.Int("providers", len(creds.Providers)), slog.Int("models", len(creds.Models)))
	return registered
}

// loadPersistedProviders constructs runtime adapters for any DB-persisted
// provider not already registered from the credentials file, so providers
// added through the store survive a restart.
func loadPersistedProviders(pool *modelPool, v *vault.Vault, db store.Store, timeout time.Duration, logger *slog.Logger, already []providers.Sender) []providers.Sender {
	existing := map[string]bool{}
	for _, s := range already {
		existing[s.ID()] = true
	}

	recs, err := db.ListProviders(context.Background())
	if err != nil {
		logger.Warn("failed to load persisted providers", slog.String("error", err.Error()))
		return nil
	}

	var registered []providers.Sender
	for _, p := range recs {
		if !p.Enabled || p.BaseURL == "" || existing[p.ID] {
			continue
		}
		apiKey := ""
		if p.CredStore == "vault" && v != nil && !v.IsLocked() {
			apiKey, _ = v.ProviderAPIKey(p.ID)
		}
		adapter, err := newProviderAdapter(p.Type, p.ID, apiKey, p.BaseURL, timeout)
		if err != nil {
			logger.Warn("skipping persisted provider: unknown type", slog.String("provider", p.ID), slog.String("type", p.Type))
			continue
		}
		registered = append(registered, adapter)
		logger.Info("registered persisted provider", slog.String("provider", p.ID), slog.String("type", p.Type))
	}
	if len(registered) > 0 {
		logger.Info("loaded persisted providers", slog.Int("count", len(registered)))
	}
	return registered
}

// loadPersistedModels registers every DB-persisted model record into pool,
// resolving each to the sender for its provider ID.
func loadPersistedModels(pool *modelPool, db store.Store, senders []providers.Sender, logger *slog.Logger) {
	byID := map[string]providers.Sender{}
	for _, s := range senders {
		byID[s.ID()] = s
	}

	models, err := db.ListModels(context.Background())
	if err != nil {
		logger.Warn("failed to load persisted models", slog.String("error", err.Error()))
		return
	}
	count := 0
	for _, m := range models {
		sender, ok := byID[m.ProviderID]
		if !ok {
			continue
		}
		pool.registerModel(m, sender)
		count++
	}
	if count > 0 {
		logger.Info("loaded persisted models", slog.Int("count", count))
	}
}

// loadRulePolicies hydrates the rule engine's tier/workflow tables and
// returns the per-domain cascade.DomainSetting map the executor routes
// against, both sourced from persisted policy records (spec.md §4.4).
func loadRulePolicies(engine *rules.Engine, db store.Store, logger *slog.Logger) map[classifier.Domain]cascade.DomainSetting {
	domains := map[classifier.Domain]cascade.DomainSetting{}

	domainRecs, err := db.LoadDomainPolicies(context.Background())
	if err != nil {
		logger.Warn("failed to load domain policies", slog.String("error", err.Error()))
	}
	for _, rec := range domainRecs {
		var complexities []classifier.Complexity
		if rec.CascadeComplexities != "" {
			var labels []string
			if err := json.Unmarshal([]byte(rec.CascadeComplexities), &labels); err == nil {
				for _, l := range labels {
					complexities = append(complexities, classifier.Complexity(l))
				}
			}
		}
		domains[classifier.Domain(rec.Domain)] = cascade.DomainSetting{
			Enabled:             rec.Enabled,
			RequireVerifier:     rec.RequireVerifier,
			CascadeComplexities: complexities,
			Drafter:             rec.Drafter,
			Verifier:            rec.Verifier,
			Threshold:           rec.Threshold,
		}
	}

	tierRecs, err := db.LoadTierPolicies(context.Background())
	if err != nil {
		logger.Warn("failed to load tier policies", slog.String("error", err.Error()))
	}
	for _, rec := range tierRecs {
		engine.Tiers[rec.Name] = rules.TierConfig{
			Name:             rec.Name,
			AllowedModels:    splitJSONList(rec.AllowedModels),
			ExcludedModels:   splitJSONList(rec.ExcludedModels),
			PreferredModels:  splitJSONList(rec.PreferredModels),
			QualityThreshold: rec.QualityThreshold,
			MaxBudget:        rec.MaxBudget,
		}
	}

	workflowRecs, err := db.LoadWorkflowPolicies(context.Background())
	if err != nil {
		logger.Warn("failed to load workflow policies", slog.String("error", err.Error()))
	}
	for _, rec := range workflowRecs {
		engine.Workflows[rec.Name] = rules.WorkflowConfig{
			Name:                     rec.Name,
			ForceModels:              splitJSONList(rec.ForceModels),
			PreferredModels:          splitJSONList(rec.PreferredModels),
			ExcludeModels:            splitJSONList(rec.ExcludeModels),
			QualityThresholdOverride: rec.QualityThresholdOverride,
			HasThresholdOverride:     rec.HasThresholdOverride,
			MaxBudgetOverride:        rec.MaxBudgetOverride,
			HasBudgetOverride:        rec.HasBudgetOverride,
		}
	}

	logger.Info("loaded rule policies",
		slog.Int("domains", len(domains)), slog.Int("tiers", len(tierRecs)), slog.Int("workflows", len(workflowRecs)))
	return domains
}

func splitJSONList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
