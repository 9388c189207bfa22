package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50_000, cfg.Credentials.MaxPayloadBytes)
	assert.False(t, cfg.Credentials.VerificationCacheEnabled, "verify reads the ledger unless caching is opted into")
	assert.Equal(t, 30*time.Second, cfg.Credentials.VerificationCacheTTL)
	assert.Empty(t, cfg.Database.URL, "empty URL selects the in-memory store")
	assert.Empty(t, cfg.Ledger.RPCURL)
	assert.Equal(t, "didlab.audit", cfg.Kafka.AuditTopic)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DIDLAB_SERVER_ADDR", ":9090")
	t.Setenv("DIDLAB_SECURITY_ISSUE_API_KEY", "issue-key")
	t.Setenv("DIDLAB_SECURITY_REVOKE_API_KEY", "revoke-key")
	t.Setenv("DIDLAB_CREDENTIALS_MAX_PAYLOAD_BYTES", "1024")
	t.Setenv("DIDLAB_CREDENTIALS_VERIFICATION_CACHE_ENABLED", "true")
	t.Setenv("DIDLAB_CREDENTIALS_VERIFICATION_CACHE_TTL", "5s")
	t.Setenv("DIDLAB_SERVER_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.0.0/16")
	t.Setenv("DIDLAB_KAFKA_BROKERS", "localhost:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "issue-key", cfg.Security.IssueAPIKey)
	assert.Equal(t, "revoke-key", cfg.Security.RevokeAPIKey)
	assert.Empty(t, cfg.Security.ExportAPIKey)
	assert.Equal(t, 1024, cfg.Credentials.MaxPayloadBytes)
	assert.True(t, cfg.Credentials.VerificationCacheEnabled)
	assert.Equal(t, 5*time.Second, cfg.Credentials.VerificationCacheTTL)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.Server.TrustedProxies)
	assert.Equal(t, "localhost:9092", cfg.Kafka.Brokers)
}

func TestLoad_ConfigFileUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "didlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7070\"\n  environment: staging\n"), 0o600))
	t.Setenv("DIDLAB_SERVER_ENVIRONMENT", "test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "test", cfg.Server.Environment, "environment wins over file")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:      ServerConfig{RequestTimeout: 90 * time.Second},
			Credentials: CredentialsConfig{MaxPayloadBytes: 50_000},
			Ledger:      LedgerConfig{ConfirmationTimeout: 60 * time.Second},
		}
	}

	t.Run("in-memory development config is valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("rpc without contract", func(t *testing.T) {
		cfg := base()
		cfg.Ledger.RPCURL = "http://localhost:8545"
		assert.ErrorContains(t, cfg.Validate(), "contract_address")
	})

	t.Run("rpc without key", func(t *testing.T) {
		cfg := base()
		cfg.Ledger.RPCURL = "http://localhost:8545"
		cfg.Ledger.ContractAddress = "0x0000000000000000000000000000000000000001"
		assert.ErrorContains(t, cfg.Validate(), "issuer_private_key")
	})

	t.Run("production requires a real ledger", func(t *testing.T) {
		cfg := base()
		cfg.Server.Environment = "production"
		assert.ErrorContains(t, cfg.Validate(), "rpc_url")
	})

	t.Run("confirmation must fit in the request timeout", func(t *testing.T) {
		cfg := base()
		cfg.Ledger.ConfirmationTimeout = 2 * time.Minute
		assert.ErrorContains(t, cfg.Validate(), "confirmation_timeout")
	})

	t.Run("enabled cache needs a ttl", func(t *testing.T) {
		cfg := base()
		cfg.Credentials.VerificationCacheEnabled = true
		assert.ErrorContains(t, cfg.Validate(), "verification_cache_ttl")
		cfg.Credentials.VerificationCacheTTL = time.Second
		assert.NoError(t, cfg.Validate())
	})

	t.Run("non-positive payload ceiling", func(t *testing.T) {
		cfg := base()
		cfg.Credentials.MaxPayloadBytes = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad_AlreadyRecordedReasons(t *testing.T) {
	t.Setenv("DIDLAB_LEDGER_ALREADY_RECORDED_REASONS", "Already Issued, duplicate entry,already issued")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"already issued", "duplicate entry"}, cfg.Ledger.AlreadyRecordedReasons)
}
