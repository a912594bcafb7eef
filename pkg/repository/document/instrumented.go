package document

import (
	"context"
	"errors"
	"time"

	doc "github.com/nimburion/docstore/pkg/document"
	"github.com/nimburion/docstore/pkg/observability/metrics"
	"github.com/nimburion/docstore/pkg/observability/tracing"
	"github.com/nimburion/docstore/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented records Prometheus metrics and an OpenTelemetry span for every call
// made through the wrapped repository. Results and errors pass through unchanged.
type Instrumented[T doc.Document] struct {
	next       repository.Repository[T, bson.M]
	collection string
	database   string
}

// NewInstrumented wraps next. collection labels every metric and span.
func NewInstrumented[T doc.Document](next repository.Repository[T, bson.M], collection, database string) *Instrumented[T] {
	return &Instrumented[T]{next: next, collection: collection, database: database}
}

// Outcome maps a repository error onto the metrics outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, repository.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, repository.ErrCancelled):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeError
	}
}

func spanOperation(op string) tracing.SpanOperation {
	switch op {
	case OpInsert:
		return tracing.SpanOperationDBInsert
	case OpUpdate:
		return tracing.SpanOperationDBUpdate
	case OpDeleteByID:
		return tracing.SpanOperationDBDelete
	default:
		return tracing.SpanOperationDBQuery
	}
}

func (r *Instrumented[T]) start(ctx context.Context, op, id string) (context.Context, trace.Span, time.Time) {
	opts := []tracing.DatabaseSpanOption{
		tracing.WithDBSystem("mongodb"),
		tracing.WithDBCollection(r.collection),
		tracing.WithRepositoryOperation(op),
		tracing.WithDocumentID(id),
	}
	if r.database != "" {
		opts = append(opts, tracing.WithDBName(r.database))
	}
	ctx, span := tracing.StartDatabaseSpan(ctx, spanOperation(op), opts...)
	return ctx, span, time.Now()
}

func (r *Instrumented[T]) finish(span trace.Span, op string, started time.Time, err error) {
	metrics.RecordRepositoryOperation(r.collection, op, Outcome(err), time.Since(started))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		tracing.RecordError(span, err)
	} else {
		tracing.RecordSuccess(span)
	}
	span.End()
}

func (r *Instrumented[T]) GetAll(ctx context.Context) ([]T, error) {
	ctx, span, started := r.start(ctx, OpGetAll, "")
	items, err := r.next.GetAll(ctx)
	r.finish(span, OpGetAll, started, err)
	return items, err
}

func (r *Instrumented[T]) GetByID(ctx context.Context, id string) (T, error) {
	ctx, span, started := r.start(ctx, OpGetByID, id)
	d, err := r.next.GetByID(ctx, id)
	r.finish(span, OpGetByID, started, err)
	return d, err
}

func (r *Instrumented[T]) Insert(ctx context.Context, d T) error {
	ctx, span, started := r.start(ctx, OpInsert, "")
	err := r.next.Insert(ctx, d)
	r.finish(span, OpInsert, started, err)
	return err
}

func (r *Instrumented[T]) Update(ctx context.Context, d T) error {
	var id string
	if !isNil(d) {
		id = d.GetID()
	}
	ctx, span, started := r.start(ctx, OpUpdate, id)
	err := r.next.Update(ctx, d)
	r.finish(span, OpUpdate, started, err)
	return err
}

func (r *Instrumented[T]) DeleteByID(ctx context.Context, id string) error {
	ctx, span, started := r.start(ctx, OpDeleteByID, id)
	err := r.next.DeleteByID(ctx, id)
	r.finish(span, OpDeleteByID, started, err)
	return err
}

func (r *Instrumented[T]) PaginateByFilter(ctx context.Context, req repository.PageRequest) (repository.Page[T], error) {
	ctx, span, started := r.start(ctx, OpPaginateByFilter, "")
	page, err := r.next.PaginateByFilter(ctx, req)
	r.finish(span, OpPaginateByFilter, started, err)
	return page, err
}

func (r *Instrumented[T]) PaginateWithExpression(ctx context.Context, predicate bson.M, req repository.PageRequest) (repository.Page[T], error) {
	ctx, span, started := r.start(ctx, OpPaginateWithExpression, "")
	page, err := r.next.PaginateWithExpression(ctx, predicate, req)
	r.finish(span, OpPaginateWithExpression, started, err)
	return page, err
}
