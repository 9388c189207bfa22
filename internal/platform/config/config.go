// Package config loads process configuration from DIDLAB_* environment
// variables, optionally layered over a config file.
//
// Empty DATABASE_URL, REDIS_URL, KAFKA_BROKERS or LEDGER_RPC_URL select the
// in-process implementation of that dependency.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	platformstrings "didlab/pkg/platform/strings"
)

// EnvPrefix is prepended to every environment key, e.g. DIDLAB_SERVER_ADDR.
const EnvPrefix = "DIDLAB"

// Config is the full process configuration.
type Config struct {
	Server      ServerConfig
	Security    SecurityConfig
	Credentials CredentialsConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Ledger      LedgerConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	Environment     string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// TrustedProxies are CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
}

// SecurityConfig holds the optional route keys. Empty disables the check.
type SecurityConfig struct {
	IssueAPIKey  string
	RevokeAPIKey string
	ExportAPIKey string
}

type CredentialsConfig struct {
	MaxPayloadBytes int
	// VerificationCacheEnabled turns on caching of positive verify results.
	// Revocations sent to the ledger without going through this service are
	// served stale for up to VerificationCacheTTL.
	VerificationCacheEnabled bool
	VerificationCacheTTL     time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Migrate applies embedded migrations at startup.
	Migrate bool
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    string
	ClientID   string
	AuditTopic string
}

type LedgerConfig struct {
	RPCURL              string
	ContractAddress     string
	IssuerPrivateKey    string
	ChainID             int64
	ConfirmationTimeout time.Duration
	// AlreadyRecordedReasons overrides the revert strings treated as
	// "entry already active". Empty keeps the client defaults.
	AlreadyRecordedReasons []string
	// DevIssuerAddress names the issuer of the in-process ledger.
	DevIssuerAddress string
}

// IsProduction reports whether the environment is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.request_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.trusted_proxies", "")

	v.SetDefault("security.issue_api_key", "")
	v.SetDefault("security.revoke_api_key", "")
	v.SetDefault("security.export_api_key", "")

	v.SetDefault("credentials.max_payload_bytes", 50_000)
	v.SetDefault("credentials.verification_cache_enabled", false)
	v.SetDefault("credentials.verification_cache_ttl", 30*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.client_id", "didlab")
	v.SetDefault("kafka.audit_topic", "didlab.audit")

	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.issuer_private_key", "")
	v.SetDefault("ledger.chain_id", 0)
	v.SetDefault("ledger.confirmation_timeout", 60*time.Second)
	v.SetDefault("ledger.already_recorded_reasons", "")
	v.SetDefault("ledger.dev_issuer_address", "0x00000000000000000000000000000000000d1d1a")
}

// Load reads configuration. A non-empty configFile is read first; environment
// variables override it.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			Environment:     v.GetString("server.environment"),
			LogLevel:        v.GetString("server.log_level"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			TrustedProxies:  platformstrings.SplitList(v.GetString("server.trusted_proxies")),
		},
		Security: SecurityConfig{
			IssueAPIKey:  v.GetString("security.issue_api_key"),
			RevokeAPIKey: v.GetString("security.revoke_api_key"),
			ExportAPIKey: v.GetString("security.export_api_key"),
		},
		Credentials: CredentialsConfig{
			MaxPayloadBytes:          v.GetInt("credentials.max_payload_bytes"),
			VerificationCacheEnabled: v.GetBool("credentials.verification_cache_enabled"),
			VerificationCacheTTL:     v.GetDuration("credentials.verification_cache_ttl"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			Migrate:         v.GetBool("database.migrate"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Kafka: KafkaConfig{
			Brokers:    v.GetString("kafka.brokers"),
			ClientID:   v.GetString("kafka.client_id"),
			AuditTopic: v.GetString("kafka.audit_topic"),
		},
		Ledger: LedgerConfig{
			RPCURL:              v.GetString("ledger.rpc_url"),
			ContractAddress:     v.GetString("ledger.contract_address"),
			IssuerPrivateKey:    v.GetString("ledger.issuer_private_key"),
			ChainID:             v.GetInt64("ledger.chain_id"),
			ConfirmationTimeout: v.GetDuration("ledger.confirmation_timeout"),
			AlreadyRecordedReasons: platformstrings.DedupeAndTrimLower(
				platformstrings.SplitList(v.GetString("ledger.already_recorded_reasons")),
			),
			DevIssuerAddress: v.GetString("ledger.dev_issuer_address"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	if c.Credentials.MaxPayloadBytes <= 0 {
		return fmt.Errorf("credentials.max_payload_bytes must be positive")
	}
	if c.Credentials.VerificationCacheEnabled && c.Credentials.VerificationCacheTTL <= 0 {
		return fmt.Errorf("credentials.verification_cache_ttl must be positive when the cache is enabled")
	}
	if c.Ledger.RPCURL != "" {
		if c.Ledger.ContractAddress == "" {
			return fmt.Errorf("ledger.contract_address is required when ledger.rpc_url is set")
		}
		if c.Ledger.IssuerPrivateKey == "" {
			return fmt.Errorf("ledger.issuer_private_key is required when ledger.rpc_url is set")
		}
	} else if c.IsProduction() {
		return fmt.Errorf("ledger.rpc_url is required in production")
	}
	if c.Server.RequestTimeout > 0 && c.Ledger.ConfirmationTimeout >= c.Server.RequestTimeout {
		return fmt.Errorf("ledger.confirmation_timeout (%s) must be shorter than server.request_timeout (%s)",
			c.Ledger.ConfirmationTimeout, c.Server.RequestTimeout)
	}
	return nil
}
