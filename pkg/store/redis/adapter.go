// Package redis provides the Redis-backed document cache store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimburion/docstore/pkg/cache"
	"github.com/nimburion/docstore/pkg/observability/logger"
)

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Config holds Redis connection configuration
type Config struct {
	URL              string
	MaxConns         int
	OperationTimeout time.Duration
	// Prefix namespaces every key, e.g. "docstore" gives "docstore:<key>".
	Prefix string
}

// Adapter stores cache entries in Redis. It implements cache.Store.
type Adapter struct {
	client    redisClient
	logger    logger.Logger
	opTimeout time.Duration
	prefix    string

	mu     sync.RWMutex
	closed bool
}

var _ cache.Store = (*Adapter)(nil)

// NewAdapter parses cfg.URL, opens a pooled client and verifies it with a ping.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	opts.DialTimeout = 5 * time.Second
	if cfg.OperationTimeout > 0 {
		opts.ReadTimeout = cfg.OperationTimeout
		opts.WriteTimeout = cfg.OperationTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	a := newAdapter(client, cfg, log)
	a.logger.Info("Redis connection established",
		"max_conns", cfg.MaxConns,
		"operation_timeout", a.opTimeout,
		"prefix", a.prefix,
	)
	return a, nil
}

func newAdapter(client redisClient, cfg Config, log logger.Logger) *Adapter {
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "docstore"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Adapter{
		client:    client,
		logger:    log,
		opTimeout: timeout,
		prefix:    prefix,
	}
}

// Get loads an entry. A missing key is cache.ErrCacheMiss.
func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	raw, err := a.client.Get(ctx, a.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return raw, nil
}

// Set stores an entry with the given TTL. A zero TTL keeps the key until deleted.
func (a *Adapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Set(ctx, a.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes an entry. Deleting a missing key is not an error.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// HealthCheck pings Redis with a short timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := a.client.Ping(ctx).Err(); err != nil {
		a.logger.Error("Redis health check failed", "error", err)
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the client. Closing twice is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if err := a.client.Close(); err != nil {
		a.logger.Error("failed to close Redis connection", "error", err)
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	a.logger.Info("Redis connection closed")
	return nil
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errors.New("redis adapter is closed")
	}
	return nil
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.opTimeout)
}

func (a *Adapter) key(key string) string {
	return a.prefix + ":" + key
}
