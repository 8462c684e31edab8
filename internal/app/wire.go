package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/stakecalc/internal/blob/s3"
	"github.com/alanyoungcy/stakecalc/internal/cache/leveldb"
	"github.com/alanyoungcy/stakecalc/internal/cache/memory"
	"github.com/alanyoungcy/stakecalc/internal/cache/redis"
	"github.com/alanyoungcy/stakecalc/internal/config"
	"github.com/alanyoungcy/stakecalc/internal/domain"
	"github.com/alanyoungcy/stakecalc/internal/platform/chain"
	"github.com/alanyoungcy/stakecalc/internal/platform/marketplace"
	"github.com/alanyoungcy/stakecalc/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Store backs the marketplace cache.
	Store        domain.KVStore
	CacheBackend string

	// SignalBus carries refresh events to the ws hub and the recorder.
	SignalBus domain.SignalBus

	Quoter  domain.Quoter
	Fetcher domain.MarketplaceFetcher

	// RefreshLog is nil unless postgres.record_refreshes is set.
	RefreshLog domain.RefreshLog
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	backend := strings.ToLower(cfg.Cache.Backend)
	deps := &Dependencies{CacheBackend: backend}

	// --- Redis (cache backend and/or signal bus) ---
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		redisClient = rc
		deps.SignalBus = redis.NewSignalBus(rc)
	} else {
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- PostgreSQL (cache backend and/or refresh history) ---
	var pgClient *postgres.Client
	if backend == config.BackendPostgres || cfg.Postgres.RecordRefreshes {
		pc, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pc.Close)

		if cfg.Postgres.RunMigrations {
			if err := pc.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		pgClient = pc
		if cfg.Postgres.RecordRefreshes {
			deps.RefreshLog = postgres.NewRefreshLog(pc.Pool())
		}
	}

	// --- Cache backend ---
	switch backend {
	case config.BackendMemory:
		deps.Store = memory.NewStore()

	case config.BackendLevelDB:
		st, err := leveldb.Open(cfg.Cache.LevelDBPath)
		if err != nil {
			return fail(fmt.Errorf("wire: leveldb: %w", err))
		}
		closers = append(closers, func() { _ = st.Close() })
		deps.Store = st

	case config.BackendRedis:
		if redisClient == nil {
			return fail(fmt.Errorf("wire: redis backend requires redis.addr"))
		}
		deps.Store = redis.NewKVStore(redisClient, cfg.Cache.KeyPrefix)

	case config.BackendPostgres:
		deps.Store = postgres.NewKVStore(pgClient.Pool())

	case config.BackendS3:
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.Cache.KeyPrefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Store = s3blob.NewKVStore(s3Client)

	default:
		return fail(fmt.Errorf("wire: unknown cache backend %q", cfg.Cache.Backend))
	}

	// --- Remote clients ---
	quoter := chain.Dial(chain.Config{
		RPCURL:          cfg.Chain.RPCURL,
		ContractAddress: cfg.Chain.ContractAddress,
		CallTimeout:     cfg.Chain.CallTimeout.Duration,
	}, chain.WithLogger(logger))
	closers = append(closers, quoter.Close)
	deps.Quoter = quoter

	deps.Fetcher = marketplace.NewClient(marketplace.Config{
		BaseURL:   cfg.Marketplace.BaseURL,
		Timeout:   cfg.Marketplace.Timeout.Duration,
		RateLimit: cfg.Marketplace.RateLimitRPS,
		Burst:     cfg.Marketplace.RateBurst,
	})

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("cache_backend", backend),
		slog.Bool("redis_bus", redisClient != nil),
		slog.Bool("refresh_log", deps.RefreshLog != nil),
	)
	return deps, cleanup, nil
}
