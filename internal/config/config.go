// Package config defines the top-level configuration for stakecalc and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by STAKECALC_* environment variables.
type Config struct {
	Chain       ChainConfig       `toml:"chain"`
	Marketplace MarketplaceConfig `toml:"marketplace"`
	Cache       CacheConfig       `toml:"cache"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ChainConfig locates the staking contract.
type ChainConfig struct {
	RPCURL          string   `toml:"rpc_url"`
	ContractAddress string   `toml:"contract_address"`
	CallTimeout     duration `toml:"call_timeout"`
}

// MarketplaceConfig holds the listing API location, client-side throttling
// and cache expiry windows.
type MarketplaceConfig struct {
	BaseURL      string   `toml:"base_url"`
	Timeout      duration `toml:"timeout"`
	RateLimitRPS float64  `toml:"rate_limit_rps"`
	RateBurst    int      `toml:"rate_burst"`
	ModelsTTL    duration `toml:"models_ttl"`
	BidsTTL      duration `toml:"bids_ttl"`
	FanOut       int      `toml:"fan_out"`
}

// Cache backends.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// CacheConfig selects where cache entries are kept.
type CacheConfig struct {
	Backend     string `toml:"backend"`
	LevelDBPath string `toml:"leveldb_path"`
	// KeyPrefix namespaces keys in shared backends (redis, s3).
	KeyPrefix string `toml:"key_prefix"`
}

// RedisConfig holds Redis connection parameters. When Addr is set the
// signal bus is Redis-backed regardless of the cache backend.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	// RecordRefreshes keeps a refresh_log row for every marketplace fetch.
	RecordRefreshes bool `toml:"record_refreshes"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port         int      `toml:"port"`
	CORSOrigins  []string `toml:"cors_origins"`
	APIKey       string   `toml:"api_key"`
	RateLimitRPS float64  `toml:"rate_limit_rps"`
	RateBurst    int      `toml:"rate_burst"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:          "https://arb1.arbitrum.io/rpc",
			ContractAddress: "0xde819aaee474626e3f34ef0263373357e5a6c71b",
			CallTimeout:     duration{15 * time.Second},
		},
		Marketplace: MarketplaceConfig{
			BaseURL:      "https://api.mor.org/api/v1",
			Timeout:      duration{30 * time.Second},
			RateLimitRPS: 5,
			RateBurst:    5,
			ModelsTTL:    duration{time.Hour},
			BidsTTL:      duration{5 * time.Minute},
			FanOut:       4,
		},
		Cache: CacheConfig{
			Backend:     BackendLevelDB,
			LevelDBPath: "data/cache.db",
			KeyPrefix:   "stakecalc:",
		},
		Redis: RedisConfig{
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "stakecalc-cache",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:         8080,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitRPS: 10,
			RateBurst:    20,
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"calc":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	BackendMemory:   true,
	BackendLevelDB:  true,
	BackendRedis:    true,
	BackendPostgres: true,
	BackendS3:       true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, calc)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		errs = append(errs, fmt.Sprintf("chain: contract_address %q is not a hex address", c.Chain.ContractAddress))
	}
	if c.Chain.CallTimeout.Duration <= 0 {
		errs = append(errs, "chain: call_timeout must be > 0")
	}

	// Marketplace
	if u, err := url.Parse(c.Marketplace.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("marketplace: base_url %q must be an http(s) URL", c.Marketplace.BaseURL))
	}
	if c.Marketplace.ModelsTTL.Duration <= 0 {
		errs = append(errs, "marketplace: models_ttl must be > 0")
	}
	if c.Marketplace.BidsTTL.Duration <= 0 {
		errs = append(errs, "marketplace: bids_ttl must be > 0")
	}
	if c.Marketplace.RateLimitRPS < 0 {
		errs = append(errs, "marketplace: rate_limit_rps must be >= 0")
	}

	// Cache backend and its connection settings.
	backend := strings.ToLower(c.Cache.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: memory, leveldb, redis, postgres, s3)", c.Cache.Backend))
	}
	switch backend {
	case BackendLevelDB:
		if c.Cache.LevelDBPath == "" {
			errs = append(errs, "cache: leveldb_path must not be empty for the leveldb backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty for the redis backend")
		}
	case BackendPostgres:
		errs = append(errs, c.Postgres.validate()...)
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if c.Postgres.RecordRefreshes && backend != BackendPostgres {
		errs = append(errs, c.Postgres.validate()...)
	}
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Server
	if strings.ToLower(c.Mode) == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server: rate_limit_rps must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (p PostgresConfig) validate() []string {
	var errs []string
	if strings.TrimSpace(p.DSN) == "" {
		if p.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if p.Port <= 0 || p.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", p.Port))
		}
		if p.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if p.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if p.PoolMinConns < 0 || p.PoolMinConns > p.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}
	return errs
}
