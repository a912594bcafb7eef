package document

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	doc "github.com/nimburion/docstore/pkg/document"
	"github.com/nimburion/docstore/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// Operation names used in errors and instrumentation.
const (
	OpGetAll                 = "GetAll"
	OpGetByID                = "GetByID"
	OpInsert                 = "Insert"
	OpUpdate                 = "Update"
	OpDeleteByID             = "DeleteByID"
	OpPaginateByFilter       = "PaginateByFilter"
	OpPaginateWithExpression = "PaginateWithExpression"
)

// MongoRepository is a generic repository for one document type bound to one collection.
// It holds no mutable state after construction and is safe for concurrent use.
type MongoRepository[T doc.Document] struct {
	collection          Collection[T]
	newID               func() string
	legacyUnfilteredCnt bool
}

// Option configures a MongoRepository.
type Option func(*repoOptions)

type repoOptions struct {
	newID               func() string
	legacyUnfilteredCnt bool
}

// WithIDGenerator sets the function used to assign identifiers on insert.
func WithIDGenerator(fn func() string) Option {
	return func(o *repoOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithLegacyUnfilteredCount makes PaginateWithExpression count the whole
// collection regardless of the filter used for the fetch.
func WithLegacyUnfilteredCount() Option {
	return func(o *repoOptions) {
		o.legacyUnfilteredCnt = true
	}
}

// ObjectIDGenerator returns a new mongo ObjectID in hex form.
func ObjectIDGenerator() string {
	return primitive.NewObjectID().Hex()
}

// UUIDGenerator returns a new random UUID string.
func UUIDGenerator() string {
	return uuid.NewString()
}

// NewMongoRepository resolves T's collection binding and opens the collection on db.
func NewMongoRepository[T doc.Document](db Database, bindings *doc.Bindings, opts ...Option) (*MongoRepository[T], error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database is required", repository.ErrConfiguration)
	}
	name, err := doc.Resolve[T](bindings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrConfiguration, err)
	}
	var timeout time.Duration
	if t, ok := db.(operationTimeouter); ok {
		timeout = t.OperationTimeout()
	}
	coll, err := NewMongoCollection[T](db.Collection(name), timeout)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFromCollection[T](coll, opts...)
}

// NewRepositoryFromCollection builds a repository on an already resolved collection.
func NewRepositoryFromCollection[T doc.Document](coll Collection[T], opts ...Option) (*MongoRepository[T], error) {
	if coll == nil {
		return nil, fmt.Errorf("%w: collection is required", repository.ErrConfiguration)
	}
	o := repoOptions{newID: ObjectIDGenerator}
	for _, opt := range opts {
		opt(&o)
	}
	return &MongoRepository[T]{
		collection:          coll,
		newID:               o.newID,
		legacyUnfilteredCnt: o.legacyUnfilteredCnt,
	}, nil
}

// CollectionName returns the collection this repository is bound to.
func (r *MongoRepository[T]) CollectionName() string {
	return r.collection.Name()
}

// GetAll returns every document in natural store order.
func (r *MongoRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	items, err := r.collection.Find(ctx, bson.M{}, FindOptions{})
	if err != nil {
		return nil, r.fail(ctx, OpGetAll, "", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// GetByID returns the document with the given identifier.
// Zero matches is ErrNotFound; more than one is ErrIntegrity.
func (r *MongoRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	items, err := r.collection.Find(ctx, idFilter(id), FindOptions{Limit: 2})
	if err != nil {
		return zero, r.fail(ctx, OpGetByID, id, err)
	}
	switch len(items) {
	case 0:
		return zero, r.fail(ctx, OpGetByID, id, repository.ErrNotFound)
	case 1:
		return items[0], nil
	default:
		return zero, r.fail(ctx, OpGetByID, id, fmt.Errorf("%w: identifier matches more than one document", repository.ErrIntegrity))
	}
}

// Insert persists a new document, assigning an identifier when it has none.
func (r *MongoRepository[T]) Insert(ctx context.Context, d T) error {
	if isNil(d) {
		return r.fail(ctx, OpInsert, "", fmt.Errorf("%w: document is nil", repository.ErrInvalidRequest))
	}
	if d.GetID() == "" {
		d.SetID(r.newID())
	}
	if err := r.collection.InsertOne(ctx, d); err != nil {
		return r.fail(ctx, OpInsert, d.GetID(), err)
	}
	return nil
}

// Update replaces the stored document that has d's identifier.
// The replacement is whole: fields absent from d are dropped.
func (r *MongoRepository[T]) Update(ctx context.Context, d T) error {
	if isNil(d) {
		return r.fail(ctx, OpUpdate, "", fmt.Errorf("%w: document is nil", repository.ErrInvalidRequest))
	}
	id := d.GetID()
	if id == "" {
		return r.fail(ctx, OpUpdate, "", fmt.Errorf("%w: document has no identifier", repository.ErrInvalidRequest))
	}
	if err := r.collection.FindOneAndReplace(ctx, idFilter(id), d); err != nil {
		return r.fail(ctx, OpUpdate, id, err)
	}
	return nil
}

// DeleteByID removes the document with the given identifier.
// Deleting an absent identifier is ErrNotFound, so a repeated delete fails.
func (r *MongoRepository[T]) DeleteByID(ctx context.Context, id string) error {
	if err := r.collection.FindOneAndDelete(ctx, idFilter(id)); err != nil {
		return r.fail(ctx, OpDeleteByID, id, err)
	}
	return nil
}

// PaginateByFilter returns one page, counting and fetching with the same filter:
// the substring filter when req has one, otherwise the whole collection.
func (r *MongoRepository[T]) PaginateByFilter(ctx context.Context, req repository.PageRequest) (repository.Page[T], error) {
	filter := requestFilter(req, nil)
	return r.paginate(ctx, OpPaginateByFilter, filter, filter, req)
}

// PaginateWithExpression returns one page fetched with predicate, or with the
// substring filter when req has one. The count uses the same filter as the fetch
// unless the repository was built WithLegacyUnfilteredCount.
func (r *MongoRepository[T]) PaginateWithExpression(ctx context.Context, predicate bson.M, req repository.PageRequest) (repository.Page[T], error) {
	findFilter := requestFilter(req, predicate)
	countFilter := findFilter
	if r.legacyUnfilteredCnt {
		countFilter = bson.M{}
	}
	return r.paginate(ctx, OpPaginateWithExpression, countFilter, findFilter, req)
}

// paginate runs the count and the page fetch concurrently. Either failure
// cancels the other and no partial page is returned.
func (r *MongoRepository[T]) paginate(ctx context.Context, op string, countFilter, findFilter bson.M, req repository.PageRequest) (repository.Page[T], error) {
	if err := req.Validate(); err != nil {
		return repository.Page[T]{}, r.fail(ctx, op, "", err)
	}
	opts := FindOptions{
		Sort:  sortSpec(req),
		Skip:  req.Offset(),
		Limit: req.Limit(),
	}

	var (
		total int64
		items []T
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.collection.CountDocuments(gctx, countFilter)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		found, err := r.collection.Find(gctx, findFilter, opts)
		if err != nil {
			return fmt.Errorf("find: %w", err)
		}
		items = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return repository.Page[T]{}, r.fail(ctx, op, "", err)
	}

	return repository.NewPage(req, items, total), nil
}

func (r *MongoRepository[T]) fail(ctx context.Context, op, id string, err error) error {
	return repository.NewOperationError(r.collection.Name(), op, id, repository.Classify(ctx, err))
}

func isNil(d any) bool {
	if d == nil {
		return true
	}
	rv := reflect.ValueOf(d)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
