package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jordanhubbard/cascadeflow/internal/adaptive"
	"github.com/jordanhubbard/cascadeflow/internal/budget"
	"github.com/jordanhubbard/cascadeflow/internal/cascade"
	"github.com/jordanhubbard/cascadeflow/internal/classifier"
	"github.com/jordanhubbard/cascadeflow/internal/events"
	"github.com/jordanhubbard/cascadeflow/internal/health"
	"github.com/jordanhubbard/cascadeflow/internal/logging"
	"github.com/jordanhubbard/cascadeflow/internal/metrics"
	"github.com/jordanhubbard/cascadeflow/internal/ratelimit"
	"github.com/jordanhubbard/cascadeflow/internal/router"
	"github.com/jordanhubbard/cascadeflow/internal/rules"
	"github.com/jordanhubbard/cascadeflow/internal/stats"
	"github.com/jordanhubbard/cascadeflow/internal/store"
	"github.com/jordanhubbard/cascadeflow/internal/tracing"
	"github.com/jordanhubbard/cascadeflow/internal/tsdb"
	"github.com/jordanhubbard/cascadeflow/internal/vault"
)

// Server wires every CascadeFlow component (provider pool, routing layers,
// scoring/budget/adaptive state, persistence, observability) into one
// request-serving unit. It exposes plain http.HandlerFuncs rather than
// mounting its own chi.Mux: cmd/cascadeflowd owns the HTTP surface and
// middleware stack, calling back into these handlers.
type Server struct {
	cfg Config

	logger       *slog.Logger
	vault        *vault.Vault
	store        store.Store
	tsdb         *tsdb.Store
	healthTrk    *health.Tracker
	prober       *health.Prober
	rateLimiter  *ratelimit.Limiter
	metrics      *metrics.Registry
	bus          *events.Bus
	stats        *stats.Collector
	pool         *modelPool
	executor     *cascade.Executor
	otelShutdown func(context.Context) error
	trace        *cascade.TraceWriter

	stopTSDBPrune   chan struct{}
	stopTracePrune  chan struct{}
	stopAdaptiveLog chan struct{}

	httpServer *http.Server
}

// NewServer builds a fully wired Server from cfg: opens the store and
// vault, loads provider/model/policy records, constructs the cascade
// executor, and starts its background maintenance loops.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.Setup(cfg.LogLevel)

	otelShutdown, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	if cfg.OTelEnabled {
		logger.Info("opentelemetry tracing enabled",
			slog.String("endpoint", cfg.OTelEndpoint),
			slog.String("service", cfg.OTelServiceName))
	}

	m := metrics.New()
	rl := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, time.Second,
		ratelimit.WithCounter(m.RateLimitedTotal))

	v, err := vault.New(cfg.VaultEnabled)
	if err != nil {
		return nil, err
	}

	db, err := store.NewSQLite(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database initialized", slog.String("dsn", cfg.DBDSN))

	if salt, data, err := db.LoadVaultBlob(context.Background()); err == nil && salt != nil {
		v.SetSalt(salt)
		logger.Info("restored vault salt from database")
		if data != nil {
			_ = v.Import(data)
			logger.Info("restored vault credentials", slog.Int("keys", len(data)))
		}
	}

	if cfg.VaultPassword != "" && cfg.VaultEnabled {
		logger.Warn("CASCADEFLOW_VAULT_PASSWORD is set: password is visible in the process environment — prefer a secrets manager in production")
		if err := v.Unlock([]byte(cfg.VaultPassword)); err != nil {
			logger.Error("failed to auto-unlock vault", slog.String("error", err.Error()))
		} else {
			logger.Info("vault auto-unlocked from CASCADEFLOW_VAULT_PASSWORD")
			if salt := v.Salt(); salt != nil {
				if err := db.SaveVaultBlob(context.Background(), salt, v.Export()); err != nil {
					logger.Warn("failed to persist vault blob after auto-unlock", slog.String("error", err.Error()))
				}
			}
		}
	}

	ht := health.NewTracker(health.DefaultConfig(), health.WithOnUpdate(func(providerID string, state health.State) {
		var val float64
		switch state {
		case health.StateHealthy:
			val = 2
		case health.StateDegraded:
			val = 1
		default:
			val = 0
		}
		m.ProviderHealthState.WithLabelValues(providerID).Set(val)
	}))

	timeout := time.Duration(cfg.ProviderTimeoutSecs) * time.Second
	pool := newModelPool()
	providerSenders := loadCredentialsFile(cfg.CredentialsFile, pool, v, db, timeout, logger)
	providerSenders = append(providerSenders, loadPersistedProviders(pool, v, db, timeout, logger, providerSenders)...)
	loadPersistedModels(pool, db, providerSenders, logger)

	var prober *health.Prober
	if os.Getenv("CASCADEFLOW_HEALTH_PROBE_DISABLED") != "true" {
		var targets []health.Probeable
		for _, s := range providerSenders {
			if p, ok := s.(health.Probeable); ok {
				targets = append(targets, p)
			}
		}
		if len(targets) > 0 {
			prober = health.NewProber(health.DefaultProberConfig(), ht, targets, logger)
			prober.Start()
			logger.Info("health prober started", slog.Int("targets", len(targets)))
		}
	}

	if len(providerSenders) == 0 {
		logger.Warn("NO PROVIDERS REGISTERED — configure " + cfg.CredentialsFile + ", or add providers through persisted config")
	}
	if len(pool.Capabilities()) == 0 {
		logger.Warn("NO MODELS REGISTERED — cascade requests will fail until models are configured")
	}

	rulesEngine := rules.New()
	domains := loadRulePolicies(rulesEngine, db, logger)

	bus := events.NewBus()
	sc := stats.NewCollector()
	seedStatsFromDB(sc, db, logger)

	ts, err := tsdb.New(db.DB())
	if err != nil {
		logger.Warn("failed to initialize tsdb", slog.String("error", err.Error()))
	}

	traceWriter, err := cascade.NewTraceWriter(cfg.TracePath, int64(cfg.TraceMaxBytesMB)*1024*1024, cfg.TraceMaxBackups)
	if err != nil {
		logger.Warn("failed to open decision trace file", slog.String("error", err.Error()))
	}

	exec := cascade.New(pool,
		cascade.WithRules(rulesEngine),
		cascade.WithAdaptive(adaptive.New()),
		cascade.WithBudget(budget.New()),
		cascade.WithStats(sc),
		cascade.WithHealth(ht),
		cascade.WithBus(bus),
		cascade.WithRecorder(m),
		cascade.WithTrace(traceWriter),
		cascade.WithLogger(logger),
		cascade.WithConfig(cascade.Config{
			Defaults: routerDefaults(cfg),
			Domains:  domains,
		}),
	)

	s := &Server{
		cfg:             cfg,
		logger:          logger,
		vault:           v,
		store:           db,
		tsdb:            ts,
		healthTrk:       ht,
		prober:          prober,
		rateLimiter:     rl,
		metrics:         m,
		bus:             bus,
		stats:           sc,
		pool:            pool,
		executor:        exec,
		otelShutdown:    otelShutdown,
		trace:           traceWriter,
		stopTSDBPrune:   make(chan struct{}),
		stopTracePrune:  make(chan struct{}),
		stopAdaptiveLog: make(chan struct{}),
	}

	if ts != nil {
		go s.tsdbPruneLoop(ts)
	}
	go s.tracePruneLoop()
	go s.adaptiveSnapshotLoop(exec)

	return s, nil
}

func routerDefaults(cfg Config) router.Defaults {
	return router.Defaults{Drafter: cfg.DefaultDrafter, Verifier: cfg.DefaultVerifier, Threshold: cfg.DefaultThreshold}
}

// allDomains lists every domain label for the periodic adaptive-snapshot
// sweep; classifier deliberately exposes no such enumeration helper since
// nothing in the hot path needs to iterate every domain.
var allDomains = []classifier.Domain{
	classifier.DomainCode, classifier.DomainData, classifier.DomainStructured,
	classifier.DomainRAG, classifier.DomainConversation, classifier.DomainTool,
	classifier.DomainCreative, classifier.DomainComparison, classifier.DomainSummary,
	classifier.DomainTranslation, classifier.DomainMath, classifier.DomainFactual,
	classifier.DomainMedical, classifier.DomainLegal, classifier.DomainFinancial,
	classifier.DomainMultimodal, classifier.DomainGeneral,
}

// SetHTTPServer registers the HTTP server so Close can drain in-flight
// requests before releasing other resources.
func (s *Server) SetHTTPServer(srv *http.Server) { s.httpServer = srv }

// MetricsHandler exposes the Prometheus scrape endpoint.
func (s *Server) MetricsHandler() http.Handler { return s.metrics.Handler() }

// RateLimitMiddleware wraps an http.Handler with per-IP rate limiting.
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler { return s.rateLimiter.Middleware(next) }

// Logger exposes the server's configured structured logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// HandleHealthz reports process liveness plus a coarse provider-health
// summary.
func (s *Server) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"providers": s.healthTrk.AllStats(),
	})
}

// Reload applies hot-reloadable configuration at runtime.
func (s *Server) Reload(cfg Config) {
	s.rateLimiter.UpdateLimits(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logging.SetLevel(cfg.LogLevel)
	s.cfg = cfg
	s.logger.Info("configuration reloaded",
		slog.Int("rate_limit_rps", cfg.RateLimitRPS),
		slog.Int("rate_limit_burst", cfg.RateLimitBurst),
		slog.String("log_level", cfg.LogLevel))
}

// Close drains in-flight requests, stops background workers, and releases
// every resource opened by NewServer.
func (s *Server) Close() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP drain error", slog.String("error", err.Error()))
		}
	}

	close(s.stopTSDBPrune)
	close(s.stopTracePrune)
	close(s.stopAdaptiveLog)
	if s.prober != nil {
		s.prober.Stop()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.otelShutdown(ctx); err != nil {
			s.logger.Warn("otel shutdown error", slog.String("error", err.Error()))
		}
	}
	if s.tsdb != nil {
		s.tsdb.Stop()
	}
	if s.trace != nil {
		if err := s.trace.Close(); err != nil {
			s.logger.Warn("trace writer close error", slog.String("error", err.Error()))
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Server) tsdbPruneLoop(ts *tsdb.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			deleted, err := ts.Prune(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("tsdb prune failed", slog.String("error", err.Error()))
			} else if deleted > 0 {
				s.logger.Info("tsdb pruned", slog.Int64("deleted", deleted))
			}
		case <-s.stopTSDBPrune:
			return
		}
	}
}

// tracePruneLoop deletes old rows from the persisted cascade-trace log
// every 6 hours with a 90-day retention window, mirroring the teacher's
// logPruneLoop cadence.
func (s *Server) tracePruneLoop() {
	const retention = 90 * 24 * time.Hour
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			deleted, err := s.store.PruneOldTraces(ctx, retention)
			cancel()
			if err != nil {
				s.logger.Warn("trace prune failed", slog.String("error", err.Error()))
			} else if deleted > 0 {
				s.logger.Info("old traces pruned", slog.Int64("deleted", deleted))
			}
		case <-s.stopTracePrune:
			return
		}
	}
}

// adaptiveSnapshotLoop periodically persists each known domain's current
// threshold adjustment for diagnostics/dashboards. The controller itself
// is explicitly process-lifetime-only (spec.md §3) and is never reseeded
// from these snapshots on restart.
func (s *Server) adaptiveSnapshotLoop(exec *cascade.Executor) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, d := range allDomains {
				adj := exec.Adaptive.Adjustment(string(d))
				if adj == 0 {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := s.store.SaveAdaptiveSnapshot(ctx, store.AdaptiveSnapshot{
					Domain:     string(d),
					Adjustment: adj,
					UpdatedAt:  time.Now(),
				})
				cancel()
				if err != nil {
					s.logger.Warn("adaptive snapshot persist failed", slog.String("domain", string(d)), slog.String("error", err.Error()))
				}
			}
		case <-s.stopAdaptiveLog:
			return
		}
	}
}

func seedStatsFromDB(sc *stats.Collector, db store.Store, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	traces, err := db.ListCascadeTraces(ctx, 5000, 0)
	if err != nil {
		logger.Warn("failed to seed stats from db", slog.String("error", err.Error()))
		return
	}
	if len(traces) == 0 {
		return
	}
	snapshots := make([]stats.Snapshot, 0, len(traces))
	for _, t := range traces {
		snapshots = append(snapshots, stats.Snapshot{
			Timestamp:     t.Timestamp,
			ModelID:       firstNonEmptyStr(t.VerifierModel, t.DrafterModel),
			Domain:        t.Domain,
			Strategy:      t.Strategy,
			LatencyMs:     t.LatencyMs,
			CostUSD:       t.CostUSD,
			Success:       t.Success,
			DraftAccepted: t.DraftAccepted,
			VerifierUsed:  t.VerifierUsed,
		})
	}
	sc.Seed(snapshots)
	logger.Info("seeded stats from db", slog.Int("snapshots", len(snapshots)))
}

func firstNonEmptyStr(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
