package document

import (
	"context"
	"errors"
	"time"

	"github.com/nimburion/docstore/pkg/cache"
	doc "github.com/nimburion/docstore/pkg/document"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/observability/metrics"
	"github.com/nimburion/docstore/pkg/observability/tracing"
	"github.com/nimburion/docstore/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
)

// Cached adds a read-through cache in front of GetByID. Update and DeleteByID
// invalidate the cached entry. Cache failures are logged and never fail a call.
// GetAll, Insert and pagination go straight to the wrapped repository.
// Entries are BSON, so a hit decodes to the same values a store read does.
type Cached[T doc.Document] struct {
	next       repository.Repository[T, bson.M]
	store      cache.Store
	collection string
	system     string
	ttl        time.Duration
	logger     logger.Logger
}

// CacheConfig configures a Cached repository.
type CacheConfig struct {
	Collection string
	TTL        time.Duration
	Logger     logger.Logger
	// System names the backing store in cache spans. Defaults to "redis".
	System string
}

// NewCached wraps next with a read-through cache backed by store.
func NewCached[T doc.Document](next repository.Repository[T, bson.M], store cache.Store, cfg CacheConfig) *Cached[T] {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.System == "" {
		cfg.System = "redis"
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Cached[T]{
		next:       next,
		store:      store,
		collection: cfg.Collection,
		system:     cfg.System,
		ttl:        cfg.TTL,
		logger:     log.With("collection", cfg.Collection),
	}
}

func (r *Cached[T]) key(id string) string {
	return r.collection + ":" + id
}

func (r *Cached[T]) GetByID(ctx context.Context, id string) (T, error) {
	key := r.key(id)
	if d, ok := r.lookup(ctx, key); ok {
		return d, nil
	}

	d, err := r.next.GetByID(ctx, id)
	if err != nil {
		return d, err
	}
	r.fill(ctx, key, d)
	return d, nil
}

func (r *Cached[T]) lookup(ctx context.Context, key string) (T, bool) {
	var d T
	spanCtx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheGet,
		tracing.WithCacheSystem(r.system), tracing.WithCacheKey(key))
	defer span.End()

	raw, err := r.store.Get(spanCtx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			metrics.RecordCacheResult(r.collection, metrics.CacheMiss)
		} else {
			metrics.RecordCacheResult(r.collection, metrics.CacheError)
			tracing.RecordError(span, err)
			r.logger.WithContext(ctx).Warn("document cache read failed", "key", key, "error", err)
		}
		return d, false
	}
	if err := bson.Unmarshal(raw, &d); err != nil {
		metrics.RecordCacheResult(r.collection, metrics.CacheError)
		r.logger.WithContext(ctx).Warn("discarding undecodable cache entry", "key", key, "error", err)
		r.invalidate(ctx, key)
		var zero T
		return zero, false
	}
	metrics.RecordCacheResult(r.collection, metrics.CacheHit)
	return d, true
}

func (r *Cached[T]) fill(ctx context.Context, key string, d T) {
	raw, err := bson.Marshal(d)
	if err != nil {
		r.logger.WithContext(ctx).Warn("document not cacheable", "key", key, "error", err)
		return
	}
	spanCtx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheSet,
		tracing.WithCacheSystem(r.system), tracing.WithCacheKey(key))
	defer span.End()
	if err := r.store.Set(spanCtx, key, raw, r.ttl); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).Warn("document cache write failed", "key", key, "error", err)
	}
}

func (r *Cached[T]) invalidate(ctx context.Context, key string) {
	spanCtx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheDel,
		tracing.WithCacheSystem(r.system), tracing.WithCacheKey(key))
	defer span.End()
	if err := r.store.Delete(spanCtx, key); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).Warn("document cache invalidation failed", "key", key, "error", err)
	}
}

// Update writes through and drops the cached entry. The entry is also dropped
// when the document no longer exists in the store.
func (r *Cached[T]) Update(ctx context.Context, d T) error {
	err := r.next.Update(ctx, d)
	if (err == nil || errors.Is(err, repository.ErrNotFound)) && !isNil(d) {
		r.invalidate(ctx, r.key(d.GetID()))
	}
	return err
}

func (r *Cached[T]) DeleteByID(ctx context.Context, id string) error {
	err := r.next.DeleteByID(ctx, id)
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		r.invalidate(ctx, r.key(id))
	}
	return err
}

func (r *Cached[T]) GetAll(ctx context.Context) ([]T, error) {
	return r.next.GetAll(ctx)
}

func (r *Cached[T]) Insert(ctx context.Context, d T) error {
	return r.next.Insert(ctx, d)
}

func (r *Cached[T]) PaginateByFilter(ctx context.Context, req repository.PageRequest) (repository.Page[T], error) {
	return r.next.PaginateByFilter(ctx, req)
}

func (r *Cached[T]) PaginateWithExpression(ctx context.Context, predicate bson.M, req repository.PageRequest) (repository.Page[T], error) {
	return r.next.PaginateWithExpression(ctx, predicate, req)
}
