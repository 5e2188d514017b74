// Package app assembles the portal's stores and services from configuration.
// It is shared by the server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/access"
	"github.com/pitabwire/reportal/internal/category"
	"github.com/pitabwire/reportal/internal/config"
	"github.com/pitabwire/reportal/internal/formconfig"
	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/report"
	"github.com/pitabwire/reportal/internal/runtime"
	"github.com/pitabwire/reportal/internal/seed"
	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/internal/submission"
)

// App holds the wired services.
type App struct {
	Stores      store.Dual
	Categories  *category.Service
	Configs     *formconfig.Store
	Locations   *location.Provider
	Classifier  *location.Classifier
	Runtime     *runtime.Engine
	Submissions *submission.Store
	Idempotency submission.IdempotencyStore
	Reports     *report.Service
	Policy      *access.StaticPolicy
	Access      *access.Resolver

	redis   *redis.Client
	closers []func()
}

// New opens the configured stores and builds every service on top of them.
// metrics may be nil.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{}

	primary, err := a.openPrimary(ctx, cfg.Stores.Primary, logger)
	if err != nil {
		return nil, err
	}
	mirror, err := a.openMirror(ctx, cfg.Stores.Mirror, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Stores = store.Dual{
		Primary: observability.InstrumentStore(primary, metrics),
		Mirror:  observability.InstrumentStore(mirror, metrics),
	}

	a.Configs = formconfig.NewStore(a.Stores, logger.Named("formconfig"))
	a.Categories = category.NewService(a.Stores, a.Configs, logger.Named("category"))
	var providerOpts []location.ProviderOption
	if bc := cfg.Locations.Breaker; bc.FailureThreshold > 0 {
		providerOpts = append(providerOpts,
			location.WithBreaker(location.NewBreaker(bc.FailureThreshold, bc.SuccessThreshold, bc.OpenFor)))
	}
	a.Locations = location.NewProvider(a.Stores.Primary, cfg.Locations.PageSize, logger.Named("location"), providerOpts...)

	classifierOpts := []location.ClassifierOption{
		location.WithSuffix(cfg.Locations.DesignatedSuffix),
		location.WithTTL(cfg.Locations.ClassificationTTL),
	}
	if metrics != nil {
		classifierOpts = append(classifierOpts,
			location.WithCacheHooks(metrics.RecordClassificationCacheHit, metrics.RecordClassificationCacheMiss))
	}
	a.Classifier = location.NewClassifier(a.Locations, classifierOpts...)

	a.Submissions = submission.NewStore(a.Stores.Primary, logger.Named("submission"))
	a.Idempotency = submission.NewMemoryIdempotencyStore(nil)
	if a.redis != nil {
		a.Idempotency = submission.NewRedisIdempotencyStore(a.redis, cfg.Stores.Mirror.Prefix)
	}
	a.Runtime = runtime.NewEngine(a.Configs, a.Locations, a.Submissions, logger.Named("runtime"))
	a.Reports = report.NewService(a.Configs, a.Locations, a.Submissions, a.Classifier, logger.Named("report"))

	a.Policy, err = access.NewStaticPolicy(cfg.Access.PolicyFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Access = access.NewResolver(a.Policy, cfg.Access.Cache.TTL)

	return a, nil
}

// Seed loads and applies the configured seed directories.
func (a *App) Seed(ctx context.Context, directories []string, logger *zap.Logger) (seed.Result, error) {
	files, err := seed.NewLoader().LoadAll(directories)
	if err != nil {
		return seed.Result{}, err
	}
	return seed.NewApplier(a.Categories, a.Configs, logger).Apply(ctx, files)
}

// Close releases store connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openPrimary(ctx context.Context, cfg config.PrimaryStoreConfig, logger *zap.Logger) (store.DocumentStore, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.Info("using in-memory primary store")
		return store.NewMemory("primary"), nil
	case config.DriverPostgres:
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("primary store: %s environment variable not set", cfg.DSNEnv)
		}
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("primary store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = cfg.MaxConns
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("primary store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("primary store: ping: %w", err)
		}

		pg := store.NewPostgres("postgres", pool)
		if cfg.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, fmt.Errorf("primary store: %w", err)
			}
		}
		a.closers = append(a.closers, pool.Close)
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported primary store driver: %q", cfg.Driver)
	}
}

func (a *App) openMirror(ctx context.Context, cfg config.MirrorStoreConfig, logger *zap.Logger) (store.DocumentStore, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.Info("using in-memory mirror store")
		return store.NewMemory("mirror"), nil
	case config.DriverRedis:
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			return nil, fmt.Errorf("mirror store: %s environment variable not set", cfg.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		a.redis = client
		if err := client.Ping(ctx).Err(); err != nil {
			// The mirror is best-effort; readiness reports it as degraded.
			logger.Warn("mirror store unreachable at startup", zap.String("addr", addr), zap.Error(err))
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
				logger.Warn("closing mirror store", zap.Error(err))
			}
		})
		return store.NewRedis("redis", client, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported mirror store driver: %q", cfg.Driver)
	}
}
