// Package cache defines the byte-oriented store behind the document read cache.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates that a cache key was not found or has expired.
var ErrCacheMiss = errors.New("cache key not found")

// Store is a pluggable cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
