package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure-Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given DSN.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying sql.DB handle (used by internal/tsdb, which
// shares this database file rather than opening a second one).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			provider_id TEXT NOT NULL,
			supports_tools BOOLEAN NOT NULL DEFAULT 0,
			cost_per_1k_in REAL NOT NULL DEFAULT 0,
			cost_per_1k_out REAL NOT NULL DEFAULT 0,
			max_context_tokens INTEGER NOT NULL DEFAULT 4096,
			enabled BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			base_url TEXT NOT NULL DEFAULT '',
			cred_store TEXT NOT NULL DEFAULT 'env',
			enabled BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS domain_policies (
			domain TEXT PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			require_verifier BOOLEAN NOT NULL DEFAULT 0,
			cascade_complexities TEXT NOT NULL DEFAULT '[]',
			drafter TEXT NOT NULL DEFAULT '',
			verifier TEXT NOT NULL DEFAULT '',
			threshold REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS tier_policies (
			name TEXT PRIMARY KEY,
			allowed_models TEXT NOT NULL DEFAULT '[]',
			excluded_models TEXT NOT NULL DEFAULT '[]',
			preferred_models TEXT NOT NULL DEFAULT '[]',
			quality_threshold REAL NOT NULL DEFAULT 0,
			max_budget REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_policies (
			name TEXT PRIMARY KEY,
			force_models TEXT NOT NULL DEFAULT '[]',
			preferred_models TEXT NOT NULL DEFAULT '[]',
			exclude_models TEXT NOT NULL DEFAULT '[]',
			quality_threshold_override REAL NOT NULL DEFAULT 0,
			has_threshold_override BOOLEAN NOT NULL DEFAULT 0,
			max_budget_override REAL NOT NULL DEFAULT 0,
			has_budget_override BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS cascade_traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			request_id TEXT NOT NULL DEFAULT '',
			domain TEXT NOT NULL DEFAULT '',
			complexity TEXT NOT NULL DEFAULT '',
			strategy TEXT NOT NULL DEFAULT '',
			drafter_model TEXT NOT NULL DEFAULT '',
			verifier_model TEXT NOT NULL DEFAULT '',
			draft_accepted BOOLEAN NOT NULL DEFAULT 0,
			verifier_used BOOLEAN NOT NULL DEFAULT 0,
			quality_score REAL NOT NULL DEFAULT 0,
			latency_ms REAL NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL DEFAULT 1,
			error_class TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cascade_traces_ts ON cascade_traces(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_cascade_traces_domain ON cascade_traces(domain)`,
		`CREATE TABLE IF NOT EXISTS adaptive_snapshots (
			domain TEXT PRIMARY KEY,
			adjustment REAL NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS vault_blob (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			salt BLOB NOT NULL,
			data TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			action TEXT NOT NULL,
			resource TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Models

func (s *SQLiteStore) ListModels(ctx context.Context) ([]ModelRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider_id, supports_tools, cost_per_1k_in, cost_per_1k_out, max_context_tokens, enabled FROM models`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var models []ModelRecord
	for rows.Next() {
		var m ModelRecord
		if err := rows.Scan(&m.ID, &m.ProviderID, &m.SupportsTools, &m.CostPer1KIn, &m.CostPer1KOut, &m.MaxContextTokens, &m.Enabled); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (s *SQLiteStore) GetModel(ctx context.Context, id string) (*ModelRecord, error) {
	var m ModelRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, provider_id, supports_tools, cost_per_1k_in, cost_per_1k_out, max_context_tokens, enabled FROM models WHERE id = ?`, id).
		Scan(&m.ID, &m.ProviderID, &m.SupportsTools, &m.CostPer1KIn, &m.CostPer1KOut, &m.MaxContextTokens, &m.Enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) UpsertModel(ctx context.Context, m ModelRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO models (id, provider_id, supports_tools, cost_per_1k_in, cost_per_1k_out, max_context_tokens, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   provider_id=excluded.provider_id,
		   supports_tools=excluded.supports_tools,
		   cost_per_1k_in=excluded.cost_per_1k_in,
		   cost_per_1k_out=excluded.cost_per_1k_out,
		   max_context_tokens=excluded.max_context_tokens,
		   enabled=excluded.enabled`,
		m.ID, m.ProviderID, m.SupportsTools, m.CostPer1KIn, m.CostPer1KOut, m.MaxContextTokens, m.Enabled)
	return err
}

func (s *SQLiteStore) DeleteModel(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id)
	return err
}

// Providers

func (s *SQLiteStore) ListProviders(ctx context.Context) ([]ProviderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, base_url, cred_store, enabled FROM providers`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var providers []ProviderRecord
	for rows.Next() {
		var p ProviderRecord
		if err := rows.Scan(&p.ID, &p.Type, &p.BaseURL, &p.CredStore, &p.Enabled); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (s *SQLiteStore) UpsertProvider(ctx context.Context, p ProviderRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO providers (id, type, base_url, cred_store, enabled)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   type=excluded.type,
		   base_url=excluded.base_url,
		   cred_store=excluded.cred_store,
		   enabled=excluded.enabled`,
		p.ID, p.Type, p.BaseURL, p.CredStore, p.Enabled)
	return err
}

func (s *SQLiteStore) DeleteProvider(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM providers WHERE id = ?`, id)
	return err
}

// Domain/tier/workflow policy config

func (s *SQLiteStore) SaveDomainPolicy(ctx context.Context, p DomainPolicyRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domain_policies (domain, enabled, require_verifier, cascade_complexities, drafter, verifier, threshold)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET
		   enabled=excluded.enabled,
		   require_verifier=excluded.require_verifier,
		   cascade_complexities=excluded.cascade_complexities,
		   drafter=excluded.drafter,
		   verifier=excluded.verifier,
		   threshold=excluded.threshold`,
		p.Domain, p.Enabled, p.RequireVerifier, p.CascadeComplexities, p.Drafter, p.Verifier, p.Threshold)
	return err
}

func (s *SQLiteStore) LoadDomainPolicies(ctx context.Context) ([]DomainPolicyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, enabled, require_verifier, cascade_complexities, drafter, verifier, threshold FROM domain_policies`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []DomainPolicyRecord
	for rows.Next() {
		var p DomainPolicyRecord
		if err := rows.Scan(&p.Domain, &p.Enabled, &p.RequireVerifier, &p.CascadeComplexities, &p.Drafter, &p.Verifier, &p.Threshold); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveTierPolicy(ctx context.Context, p TierPolicyRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tier_policies (name, allowed_models, excluded_models, preferred_models, quality_threshold, max_budget)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   allowed_models=excluded.allowed_models,
		   excluded_models=excluded.excluded_models,
		   preferred_models=excluded.preferred_models,
		   quality_threshold=excluded.quality_threshold,
		   max_budget=excluded.max_budget`,
		p.Name, p.AllowedModels, p.ExcludedModels, p.PreferredModels, p.QualityThreshold, p.MaxBudget)
	return err
}

func (s *SQLiteStore) LoadTierPolicies(ctx context.Context) ([]TierPolicyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, allowed_models, excluded_models, preferred_models, quality_threshold, max_budget FROM tier_policies`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []TierPolicyRecord
	for rows.Next() {
		var p TierPolicyRecord
		if err := rows.Scan(&p.Name, &p.AllowedModels, &p.ExcludedModels, &p.PreferredModels, &p.QualityThreshold, &p.MaxBudget); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveWorkflowPolicy(ctx context.Context, p WorkflowPolicyRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_policies (name, force_models, preferred_models, exclude_models,
		   quality_threshold_override, has_threshold_override, max_budget_override, has_budget_override)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   force_models=excluded.force_models,
		   preferred_models=excluded.preferred_models,
		   exclude_models=excluded.exclude_models,
		   quality_threshold_override=excluded.quality_threshold_override,
		   has_threshold_override=excluded.has_threshold_override,
		   max_budget_override=excluded.max_budget_override,
		   has_budget_override=excluded.has_budget_override`,
		p.Name, p.ForceModels, p.PreferredModels, p.ExcludeModels,
		p.QualityThresholdOverride, p.HasThresholdOverride, p.MaxBudgetOverride, p.HasBudgetOverride)
	return err
}

func (s *SQLiteStore) LoadWorkflowPolicies(ctx context.Context) ([]WorkflowPolicyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, force_models, preferred_models, exclude_models,
		   quality_threshold_override, has_threshold_override, max_budget_override, has_budget_override
		 FROM workflow_policies`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []WorkflowPolicyRecord
	for rows.Next() {
		var p WorkflowPolicyRecord
		if err := rows.Scan(&p.Name, &p.ForceModels, &p.PreferredModels, &p.ExcludeModels,
			&p.QualityThresholdOverride, &p.HasThresholdOverride, &p.MaxBudgetOverride, &p.HasBudgetOverride); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Cascade decision traces

func (s *SQLiteStore) LogCascadeTrace(ctx context.Context, entry CascadeTraceLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cascade_traces (timestamp, request_id, domain, complexity, strategy,
		   drafter_model, verifier_model, draft_accepted, verifier_used, quality_score,
		   latency_ms, cost_usd, success, error_class)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.RequestID, entry.Domain, entry.Complexity, entry.Strategy,
		entry.DrafterModel, entry.VerifierModel, entry.DraftAccepted, entry.VerifierUsed,
		entry.QualityScore, entry.LatencyMs, entry.CostUSD, entry.Success, entry.ErrorClass)
	return err
}

func (s *SQLiteStore) ListCascadeTraces(ctx context.Context, limit, offset int) ([]CascadeTraceLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, request_id, domain, complexity, strategy, drafter_model, verifier_model,
		   draft_accepted, verifier_used, quality_score, latency_ms, cost_usd, success, error_class
		 FROM cascade_traces ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []CascadeTraceLog
	for rows.Next() {
		var l CascadeTraceLog
		var ts string
		if err := rows.Scan(&l.ID, &ts, &l.RequestID, &l.Domain, &l.Complexity, &l.Strategy,
			&l.DrafterModel, &l.VerifierModel, &l.DraftAccepted, &l.VerifierUsed,
			&l.QualityScore, &l.LatencyMs, &l.CostUSD, &l.Success, &l.ErrorClass); err != nil {
			return nil, err
		}
		l.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PruneOldTraces(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result, err := s.db.ExecContext(ctx, `DELETE FROM cascade_traces WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Adaptive-controller snapshots

func (s *SQLiteStore) SaveAdaptiveSnapshot(ctx context.Context, snap AdaptiveSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO adaptive_snapshots (domain, adjustment, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET adjustment=excluded.adjustment, updated_at=excluded.updated_at`,
		snap.Domain, snap.Adjustment, snap.UpdatedAt)
	return err
}

func (s *SQLiteStore) LoadAdaptiveSnapshots(ctx context.Context) ([]AdaptiveSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, adjustment, updated_at FROM adaptive_snapshots`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AdaptiveSnapshot
	for rows.Next() {
		var snap AdaptiveSnapshot
		if err := rows.Scan(&snap.Domain, &snap.Adjustment, &snap.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Vault persistence

func (s *SQLiteStore) SaveVaultBlob(ctx context.Context, salt []byte, data map[string]string) error {
	j, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal vault data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vault_blob (id, salt, data) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET salt=excluded.salt, data=excluded.data`,
		salt, string(j))
	return err
}

func (s *SQLiteStore) LoadVaultBlob(ctx context.Context) ([]byte, map[string]string, error) {
	var salt []byte
	var dataStr string
	err := s.db.QueryRowContext(ctx, `SELECT salt, data FROM vault_blob WHERE id = 1`).Scan(&salt, &dataStr)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
		return nil, nil, fmt.Errorf("unmarshal vault data: %w", err)
	}
	return salt, data, nil
}

// Audit logs

func (s *SQLiteStore) LogAudit(ctx context.Context, entry AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (timestamp, action, resource, detail, request_id)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.Action, entry.Resource, entry.Detail, entry.RequestID)
	return err
}

func (s *SQLiteStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, action, resource, detail, request_id
		 FROM audit_logs ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AuditEntry
	for rows.Next() {
		var l AuditEntry
		var ts string
		if err := rows.Scan(&l.ID, &ts, &l.Action, &l.Resource, &l.Detail, &l.RequestID); err != nil {
			return nil, err
		}
		l.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, l)
	}
	return out, rows.Err()
}
