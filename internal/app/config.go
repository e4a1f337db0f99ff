package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jordanhubbard/cascadeflow/internal/cferrors"
)

// Config holds every environment-tunable knob for a cascadeflowd process,
// following the teacher's env-var-driven pattern: every field has a
// CASCADEFLOW_* variable, a sane default, and is validated once at startup.
type Config struct {
	ListenAddr string
	LogLevel   string
	DBDSN      string

	VaultEnabled  bool
	VaultPassword string

	DefaultDrafter   string
	DefaultVerifier  string
	DefaultThreshold float64
	DefaultMaxBudget float64

	ProviderTimeoutSecs int

	AdminToken  string
	CORSOrigins []string

	RateLimitRPS   int
	RateLimitBurst int

	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string

	CredentialsFile string

	TracePath       string
	TraceMaxBytesMB int
	TraceMaxBackups int
}

// LoadConfig reads configuration from the environment, applying defaults
// for anything unset.
func LoadConfig() Config {
	return Config{
		ListenAddr: getEnv("CASCADEFLOW_LISTEN_ADDR", ":8088"),
		LogLevel:   getEnv("CASCADEFLOW_LOG_LEVEL", "info"),
		DBDSN:      getEnv("CASCADEFLOW_DB_DSN", defaultDBPath()),

		VaultEnabled:  getEnvBool("CASCADEFLOW_VAULT_ENABLED", false),
		VaultPassword: getEnv("CASCADEFLOW_VAULT_PASSWORD", ""),

		DefaultDrafter:   getEnv("CASCADEFLOW_DEFAULT_DRAFTER", "haiku"),
		DefaultVerifier:  getEnv("CASCADEFLOW_DEFAULT_VERIFIER", "opus"),
		DefaultThreshold: getEnvFloat("CASCADEFLOW_DEFAULT_THRESHOLD", 0.6),
		DefaultMaxBudget: getEnvFloat("CASCADEFLOW_DEFAULT_MAX_BUDGET", 0),

		ProviderTimeoutSecs: getEnvInt("CASCADEFLOW_PROVIDER_TIMEOUT_SECS", 30),

		AdminToken:  getEnv("CASCADEFLOW_ADMIN_TOKEN", ""),
		CORSOrigins: getEnvStringSlice("CASCADEFLOW_CORS_ORIGINS", []string{"*"}),

		RateLimitRPS:   getEnvInt("CASCADEFLOW_RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("CASCADEFLOW_RATE_LIMIT_BURST", 40),

		OTelEnabled:     getEnvBool("CASCADEFLOW_OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("CASCADEFLOW_OTEL_ENDPOINT", "localhost:4318"),
		OTelServiceName: getEnv("CASCADEFLOW_OTEL_SERVICE_NAME", "cascadeflow"),

		CredentialsFile: getEnv("CASCADEFLOW_CREDENTIALS_FILE", defaultCredentialsPath()),

		TracePath:       getEnv("CASCADEFLOW_TRACE_PATH", defaultTracePath()),
		TraceMaxBytesMB: getEnvInt("CASCADEFLOW_TRACE_MAX_BYTES_MB", 50),
		TraceMaxBackups: getEnvInt("CASCADEFLOW_TRACE_MAX_BACKUPS", 3),
	}
}

// Validate rejects a Config that would leave the server in an unusable or
// unsafe state.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return &cferrors.ConfigError{Field: "CASCADEFLOW_LISTEN_ADDR", Message: "must not be empty"}
	}
	if c.DBDSN == "" {
		return &cferrors.ConfigError{Field: "CASCADEFLOW_DB_DSN", Message: "must not be empty"}
	}
	if c.VaultEnabled && c.VaultPassword != "" && len(c.VaultPassword) < 8 {
		return &cferrors.ConfigError{Field: "CASCADEFLOW_VAULT_PASSWORD", Message: "must be at least 8 bytes"}
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return &cferrors.ConfigError{Field: "CASCADEFLOW_DEFAULT_THRESHOLD", Message: "must be between 0 and 1"}
	}
	if c.ProviderTimeoutSecs <= 0 {
		return &cferrors.ConfigError{Field: "CASCADEFLOW_PROVIDER_TIMEOUT_SECS", Message: "must be positive"}
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return &cferrors.ConfigError{Field: "CASCADEFLOW_RATE_LIMIT_RPS", Message: "must be non-negative"}
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cascadeflow.db"
	}
	return filepath.Join(home, ".cascadeflow", "cascadeflow.db")
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cascadeflow/credentials"
	}
	return filepath.Join(home, ".cascadeflow", "credentials")
}

func defaultTracePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cascade-trace.jsonl"
	}
	return filepath.Join(home, ".cascadeflow", "cascade-trace.jsonl")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvStringSlice(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
