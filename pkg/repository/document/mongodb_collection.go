package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/docstore/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection adapts a *mongo.Collection to the Collection contract.
// When timeout is positive it bounds each call whose context has no deadline.
type MongoCollection[T any] struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoCollection creates a new MongoCollection instance.
func NewMongoCollection[T any](coll *mongo.Collection, timeout time.Duration) (*MongoCollection[T], error) {
	if coll == nil {
		return nil, fmt.Errorf("%w: mongo collection is required", repository.ErrConfiguration)
	}
	return &MongoCollection[T]{coll: coll, timeout: timeout}, nil
}

// Name returns the collection name.
func (c *MongoCollection[T]) Name() string {
	return c.coll.Name()
}

// Find returns every document matching filter, honoring sort, skip and limit.
func (c *MongoCollection[T]) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]T, error) {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	ctx, cancel := c.withOperationTimeout(ctx)
	defer cancel()
	cursor, err := c.coll.Find(ctx, nonNil(filter), findOpts)
	if err != nil {
		return nil, err
	}

	items := []T{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CountDocuments counts documents matching filter.
func (c *MongoCollection[T]) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := c.withOperationTimeout(ctx)
	defer cancel()
	return c.coll.CountDocuments(ctx, nonNil(filter))
}

// InsertOne inserts a document. A duplicate _id is reported as an integrity violation.
func (c *MongoCollection[T]) InsertOne(ctx context.Context, doc T) error {
	ctx, cancel := c.withOperationTimeout(ctx)
	defer cancel()
	_, err := c.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", repository.ErrIntegrity, err)
	}
	return err
}

// FindOneAndReplace replaces the single document matching filter with doc.
// The stored _id is kept, whatever its BSON type.
func (c *MongoCollection[T]) FindOneAndReplace(ctx context.Context, filter bson.M, doc T) error {
	replacement, err := withoutID(doc)
	if err != nil {
		return err
	}
	ctx, cancel := c.withOperationTimeout(ctx)
	defer cancel()
	return notFound(c.coll.FindOneAndReplace(ctx, nonNil(filter), replacement).Err())
}

// FindOneAndDelete deletes the single document matching filter.
func (c *MongoCollection[T]) FindOneAndDelete(ctx context.Context, filter bson.M) error {
	ctx, cancel := c.withOperationTimeout(ctx)
	defer cancel()
	return notFound(c.coll.FindOneAndDelete(ctx, nonNil(filter)).Err())
}

func (c *MongoCollection[T]) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	}
	return err
}

func withoutID(doc any) (bson.D, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	out := d[:0]
	for _, e := range d {
		if e.Key != idField {
			out = append(out, e)
		}
	}
	return out, nil
}

// nonNil avoids sending a null filter document to the server.
func nonNil(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
