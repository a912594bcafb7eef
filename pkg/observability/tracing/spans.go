package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation represents a traced operation type.
type SpanOperation string

// Span operation constants
const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBInsert SpanOperation = "db.insert"
	SpanOperationDBUpdate SpanOperation = "db.update"
	SpanOperationDBDelete SpanOperation = "db.delete"

	SpanOperationCacheGet SpanOperation = "cache.get"
	SpanOperationCacheSet SpanOperation = "cache.set"
	SpanOperationCacheDel SpanOperation = "cache.delete"
)

// InstrumentationName is the tracer name used for every docstore span.
const InstrumentationName = "github.com/nimburion/docstore"

// StartDatabaseSpan creates a client span for a document store operation.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.collection != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.collection)
	}

	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	collection string
	attributes []attribute.KeyValue
}

// WithDBCollection sets the collection name for the span.
func WithDBCollection(collection string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.collection = collection
		opts.attributes = append(opts.attributes, attribute.String("db.collection", collection))
	}
}

// WithDBSystem sets the database system (e.g. "mongodb").
func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBName sets the database name.
func WithDBName(name string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.name", name))
	}
}

// WithRepositoryOperation records the repository method that issued the call.
func WithRepositoryOperation(op string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("docstore.operation", op))
	}
}

// WithDocumentID records the target document identifier.
func WithDocumentID(id string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		if id != "" {
			opts.attributes = append(opts.attributes, attribute.String("docstore.document_id", id))
		}
	}
}

// StartCacheSpan creates a client span for a cache operation.
func StartCacheSpan(ctx context.Context, operation SpanOperation, opts ...CacheSpanOption) (context.Context, trace.Span) {
	spanOpts := &cacheSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("cache.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("CACHE %s", operation)
	if spanOpts.key != "" {
		spanName = fmt.Sprintf("CACHE %s %s", operation, spanOpts.key)
	}

	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// CacheSpanOption configures a cache span.
type CacheSpanOption func(*cacheSpanOptions)

type cacheSpanOptions struct {
	key        string
	attributes []attribute.KeyValue
}

// WithCacheSystem sets the cache system (e.g. "redis").
func WithCacheSystem(system string) CacheSpanOption {
	return func(opts *cacheSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("cache.system", system))
	}
}

// WithCacheKey sets the cache key.
func WithCacheKey(key string) CacheSpanOption {
	return func(opts *cacheSpanOptions) {
		opts.key = key
		opts.attributes = append(opts.attributes, attribute.String("cache.key", key))
	}
}

// WithCacheHit sets whether the lookup was a hit.
func WithCacheHit(hit bool) CacheSpanOption {
	return func(opts *cacheSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.Bool("cache.hit", hit))
	}
}

// RecordError records err on span and marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
