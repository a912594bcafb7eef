// Package mongodb manages the MongoDB client behind the document repositories.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/repository"
)

// Adapter provides MongoDB connectivity.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration
	mu       sync.RWMutex
	closed   bool
}

// Config holds MongoDB adapter configuration.
type Config struct {
	URL              string
	Database         string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	MaxPoolSize      uint64
	MinPoolSize      uint64
	MaxConnIdleTime  time.Duration
}

// NewAdapter connects to MongoDB and verifies the connection with a ping.
// It does not create collections or indexes.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: mongodb URL is required", repository.ErrConfiguration)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("%w: mongodb database is required", repository.ErrConfiguration)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	clientOpts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to mongodb: %w", repository.ErrStoreConnectivity, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: failed to ping mongodb: %w", repository.ErrStoreConnectivity, err)
	}

	log.Info("MongoDB connection established",
		"url", RedactURL(cfg.URL),
		"database", cfg.Database,
		"max_pool_size", cfg.MaxPoolSize,
	)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
	}, nil
}

func clientOptions(cfg Config) (*options.ClientOptions, error) {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(cfg.MaxConnIdleTime)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid mongodb options: %w", repository.ErrConfiguration, err)
	}
	return opts, nil
}

// RedactURL replaces the password in a connection string with "xxxxx".
// Unparseable input is returned as "<invalid url>" so it is never logged verbatim.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}

// Client returns the underlying driver client.
func (a *Adapter) Client() *mongo.Client {
	return a.client
}

// Database returns the configured database handle.
func (a *Adapter) Database() *mongo.Database {
	return a.client.Database(a.database)
}

// Collection returns a handle to the named collection in the configured database.
func (a *Adapter) Collection(name string) *mongo.Collection {
	return a.Database().Collection(name)
}

// OperationTimeout is the default bound applied to calls whose context has no deadline.
func (a *Adapter) OperationTimeout() time.Duration {
	return a.timeout
}

func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return errors.New("mongodb adapter is closed")
	}
	ctx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.client.Ping(ctx, readpref.Primary())
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client. Closing twice is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	a.logger.Info("MongoDB connection closed")
	return nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
