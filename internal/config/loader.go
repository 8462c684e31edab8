package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STAKECALC_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STAKECALC_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "STAKECALC_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ContractAddress, "STAKECALC_CHAIN_CONTRACT_ADDRESS")
	setDuration(&cfg.Chain.CallTimeout, "STAKECALC_CHAIN_CALL_TIMEOUT")

	// ── Marketplace ──
	setStr(&cfg.Marketplace.BaseURL, "STAKECALC_MARKETPLACE_BASE_URL")
	setDuration(&cfg.Marketplace.Timeout, "STAKECALC_MARKETPLACE_TIMEOUT")
	setFloat64(&cfg.Marketplace.RateLimitRPS, "STAKECALC_MARKETPLACE_RATE_LIMIT_RPS")
	setInt(&cfg.Marketplace.RateBurst, "STAKECALC_MARKETPLACE_RATE_BURST")
	setDuration(&cfg.Marketplace.ModelsTTL, "STAKECALC_MARKETPLACE_MODELS_TTL")
	setDuration(&cfg.Marketplace.BidsTTL, "STAKECALC_MARKETPLACE_BIDS_TTL")
	setInt(&cfg.Marketplace.FanOut, "STAKECALC_MARKETPLACE_FAN_OUT")

	// ── Cache ──
	setStr(&cfg.Cache.Backend, "STAKECALC_CACHE_BACKEND")
	setStr(&cfg.Cache.LevelDBPath, "STAKECALC_CACHE_LEVELDB_PATH")
	setStr(&cfg.Cache.KeyPrefix, "STAKECALC_CACHE_KEY_PREFIX")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "STAKECALC_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STAKECALC_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STAKECALC_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STAKECALC_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STAKECALC_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STAKECALC_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.DSN, "STAKECALC_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "STAKECALC_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "STAKECALC_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "STAKECALC_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "STAKECALC_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STAKECALC_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "STAKECALC_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STAKECALC_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STAKECALC_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STAKECALC_POSTGRES_RUN_MIGRATIONS")
	setBool(&cfg.Postgres.RecordRefreshes, "STAKECALC_POSTGRES_RECORD_REFRESHES")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "STAKECALC_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STAKECALC_S3_REGION")
	setStr(&cfg.S3.Bucket, "STAKECALC_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STAKECALC_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STAKECALC_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STAKECALC_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STAKECALC_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "STAKECALC_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "STAKECALC_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "STAKECALC_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimitRPS, "STAKECALC_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateBurst, "STAKECALC_SERVER_RATE_BURST")

	// ── Top-level ──
	setStr(&cfg.Mode, "STAKECALC_MODE")
	setStr(&cfg.LogLevel, "STAKECALC_LOG_LEVEL")
}

// setEnv overwrites *dst with parse(value) when the variable key is set and
// non-empty. Values that fail to parse are ignored so a typo falls back to
// the file or default rather than zeroing the field.
func setEnv[T any](dst *T, key string, parse func(string) (T, error)) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if parsed, err := parse(v); err == nil {
		*dst = parsed
	}
}

func setStr(dst *string, key string) {
	setEnv(dst, key, func(v string) (string, error) { return v, nil })
}

func setInt(dst *int, key string) { setEnv(dst, key, strconv.Atoi) }

func setBool(dst *bool, key string) { setEnv(dst, key, strconv.ParseBool) }

func setFloat64(dst *float64, key string) {
	setEnv(dst, key, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func setDuration(dst *duration, key string) {
	setEnv(dst, key, func(v string) (duration, error) {
		d, err := time.ParseDuration(v)
		return duration{d}, err
	})
}

// setStringSlice splits a comma-separated list, dropping blank items. An
// all-blank list leaves *dst unchanged.
func setStringSlice(dst *[]string, key string) {
	setEnv(dst, key, func(v string) ([]string, error) {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return nil, errors.New("empty list")
		}
		return items, nil
	})
}
