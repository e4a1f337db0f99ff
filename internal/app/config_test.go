package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/cascadeflow/internal/cferrors"
)

func validConfig() Config {
	return Config{
		ListenAddr:          ":8088",
		DBDSN:               "/tmp/cascadeflow-test.db",
		DefaultThreshold:    0.6,
		ProviderTimeoutSecs: 30,
		RateLimitRPS:        20,
		RateLimitBurst:      40,
	}
}

func TestConfigValidateAccepts(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateRejectsEmptyListenAddr(t *testing.T) {
	cfg := validConfig()
	cfg.ListenAddr = ""
	err := cfg.Validate()
	require.Error(t, err)
	var cerr *cferrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "CASCADEFLOW_LISTEN_ADDR", cerr.Field)
}

func TestConfigValidateRejectsEmptyDSN(t *testing.T) {
	cfg := validConfig()
	cfg.DBDSN = ""
	err := cfg.Validate()
	var cerr *cferrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "CASCADEFLOW_DB_DSN", cerr.Field)
}

func TestConfigValidateRejectsShortVaultPassword(t *testing.T) {
	cfg := validConfig()
	cfg.VaultEnabled = true
	cfg.VaultPassword = "short"
	err := cfg.Validate()
	var cerr *cferrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "CASCADEFLOW_VAULT_PASSWORD", cerr.Field)
}

func TestConfigValidateAllowsLongVaultPassword(t *testing.T) {
	cfg := validConfig()
	cfg.VaultEnabled = true
	cfg.VaultPassword = "a-sufficiently-long-passphrase"
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateRejectsThresholdOutOfRange(t *testing.T) {
	for _, bad := range []float64{-0.1, 1.1} {
		cfg := validConfig()
		cfg.DefaultThreshold = bad
		err := cfg.Validate()
		var cerr *cferrors.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "CASCADEFLOW_DEFAULT_THRESHOLD", cerr.Field)
	}
}

func TestConfigValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.ProviderTimeoutSecs = 0
	err := cfg.Validate()
	var cerr *cferrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "CASCADEFLOW_PROVIDER_TIMEOUT_SECS", cerr.Field)
}

func TestConfigValidateRejectsNegativeRateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimitRPS = -1
	err := cfg.Validate()
	var cerr *cferrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "CASCADEFLOW_RATE_LIMIT_RPS", cerr.Field)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("CASCADEFLOW_LISTEN_ADDR", "")
	t.Setenv("CASCADEFLOW_DEFAULT_THRESHOLD", "")
	cfg := LoadConfig()
	assert.Equal(t, ":8088", cfg.ListenAddr)
	assert.Equal(t, 0.6, cfg.DefaultThreshold)
	assert.Equal(t, 30, cfg.ProviderTimeoutSecs)
}

func TestLoadConfigReadsEnvOverrides(t *testing.T) {
	t.Setenv("CASCADEFLOW_LISTEN_ADDR", ":9999")
	t.Setenv("CASCADEFLOW_DEFAULT_THRESHOLD", "0.75")
	t.Setenv("CASCADEFLOW_CORS_ORIGINS", "https://a.example, https://b.example")
	cfg := LoadConfig()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 0.75, cfg.DefaultThreshold)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
