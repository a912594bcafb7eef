package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/docstore/pkg/cache"
	"github.com/nimburion/docstore/pkg/config"
	doc "github.com/nimburion/docstore/pkg/document"
	"github.com/nimburion/docstore/pkg/health"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/observability/tracing"
	"github.com/nimburion/docstore/pkg/repository"
	docrepo "github.com/nimburion/docstore/pkg/repository/document"
	"github.com/nimburion/docstore/pkg/store/mongodb"
	storeredis "github.com/nimburion/docstore/pkg/store/redis"
	"github.com/nimburion/docstore/pkg/version"
)

// RecordRepository is the repository the get and query commands run against.
type RecordRepository = repository.Repository[*Record, bson.M]

// RepositoryFactory opens the record repository bound to a collection key.
// The returned close function releases everything the factory opened.
type RepositoryFactory func(ctx context.Context, cfg *config.Config, log logger.Logger, collectionKey string) (RecordRepository, func() error, error)

// HealthRegistryFactory builds the dependency checks run by the healthcheck command.
type HealthRegistryFactory func(ctx context.Context, cfg *config.Config, log logger.Logger) (*health.Registry, func() error, error)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolveCollection maps a collection key from the command line to its collection name.
func ResolveCollection(cfg *config.Config, key string) (string, error) {
	name, ok := cfg.Collections[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown collection key %q", repository.ErrConfiguration, key)
	}
	return name, nil
}

func mongoConfig(cfg *config.Config) mongodb.Config {
	return mongodb.Config{
		URL:              cfg.Database.URL,
		Database:         cfg.Database.DatabaseName,
		ConnectTimeout:   cfg.Database.ConnectTimeout,
		OperationTimeout: cfg.Database.QueryTimeout,
		MaxPoolSize:      cfg.Database.MaxPoolSize,
		MinPoolSize:      cfg.Database.MinPoolSize,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
	}
}

func redisConfig(cfg *config.Config) storeredis.Config {
	return storeredis.Config{
		URL:              cfg.Cache.URL,
		MaxConns:         cfg.Cache.MaxConns,
		OperationTimeout: cfg.Cache.OperationTimeout,
		Prefix:           cfg.Cache.Prefix,
	}
}

func tracerConfig(cfg *config.Config) tracing.TracerConfig {
	return tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: version.Current(cfg.Service.Name).Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	}
}

// OpenRecordRepository connects to MongoDB and builds the record repository for
// collectionKey. Instrumentation wraps the store when metrics or tracing are on,
// and the Redis cache wraps both when the cache is enabled. An unreachable cache
// is logged and skipped.
func OpenRecordRepository(ctx context.Context, cfg *config.Config, log logger.Logger, collectionKey string) (RecordRepository, func() error, error) {
	collection, err := ResolveCollection(cfg, collectionKey)
	if err != nil {
		return nil, nil, err
	}

	var cs closers
	fail := func(err error) (RecordRepository, func() error, error) {
		if closeErr := cs.close(); closeErr != nil {
			log.Warn("failed to release resources", "error", closeErr)
		}
		return nil, nil, err
	}

	tp, err := tracing.NewTracerProvider(ctx, tracerConfig(cfg))
	if err != nil {
		return fail(fmt.Errorf("create tracer provider: %w", err))
	}
	cs.add(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	})

	db, err := mongodb.NewAdapter(mongoConfig(cfg), log)
	if err != nil {
		return fail(err)
	}
	cs.add(db.Close)

	bindings := doc.NewBindings()
	if err := doc.Bind[*Record](bindings, collection); err != nil {
		return fail(fmt.Errorf("%w: %w", repository.ErrConfiguration, err))
	}
	base, err := docrepo.NewMongoRepository[*Record](db, bindings)
	if err != nil {
		return fail(err)
	}

	var repo RecordRepository = base
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		repo = docrepo.NewInstrumented[*Record](repo, collection, cfg.Database.DatabaseName)
	}

	if cfg.Cache.Enabled {
		store, err := openCacheStore(cfg, log)
		if err != nil {
			log.Warn("document cache unavailable, reading from the store", "error", err)
		} else {
			cs.add(store.Close)
			repo = docrepo.NewCached[*Record](repo, store, docrepo.CacheConfig{
				Collection: collection,
				TTL:        cfg.Cache.TTL,
				Logger:     log,
				System:     cacheSystem(cfg),
			})
		}
	}

	return repo, cs.close, nil
}

// BuildHealthRegistry registers a check for MongoDB, and for Redis when the cache
// is enabled. A dependency that cannot be reached at all is reported unhealthy.
func BuildHealthRegistry(_ context.Context, cfg *config.Config, log logger.Logger) (*health.Registry, func() error, error) {
	registry := health.NewRegistry()
	var cs closers

	db, err := mongodb.NewAdapter(mongoConfig(cfg), log)
	if err != nil {
		registry.Register(health.NewDatabaseChecker("mongodb", unreachable(err)))
	} else {
		cs.add(db.Close)
		registry.Register(health.NewDatabaseChecker("mongodb", db))
	}

	if cfg.Cache.Enabled && !isMemoryCache(cfg) {
		store, err := storeredis.NewAdapter(redisConfig(cfg), log)
		if err != nil {
			registry.Register(health.NewCacheChecker("redis", unreachable(err)))
		} else {
			cs.add(store.Close)
			registry.Register(health.NewCacheChecker("redis", store))
		}
	}

	return registry, cs.close, nil
}

// MemoryCacheURL selects the in-process cache store instead of Redis.
const MemoryCacheURL = "memory://"

func isMemoryCache(cfg *config.Config) bool {
	return strings.HasPrefix(strings.TrimSpace(cfg.Cache.URL), MemoryCacheURL)
}

func cacheSystem(cfg *config.Config) string {
	if isMemoryCache(cfg) {
		return "memory"
	}
	return "redis"
}

func openCacheStore(cfg *config.Config, log logger.Logger) (cache.Store, error) {
	if isMemoryCache(cfg) {
		return cache.NewMemoryStore(), nil
	}
	return storeredis.NewAdapter(redisConfig(cfg), log)
}

func unreachable(err error) health.CheckFunc {
	return func(context.Context) error { return err }
}
