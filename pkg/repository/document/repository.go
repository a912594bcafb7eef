package document

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// FindOptions carries the sort/skip/limit modifiers of a find.
type FindOptions struct {
	Sort  bson.D
	Skip  int64
	Limit int64
}

// Collection is the minimal document-store contract the repository is built on.
// FindOneAndReplace and FindOneAndDelete return repository.ErrNotFound when nothing matches.
type Collection[T any] interface {
	Name() string
	Find(ctx context.Context, filter bson.M, opts FindOptions) ([]T, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	InsertOne(ctx context.Context, doc T) error
	FindOneAndReplace(ctx context.Context, filter bson.M, doc T) error
	FindOneAndDelete(ctx context.Context, filter bson.M) error
}

// Database hands out collection handles by name.
// *mongodb.Adapter satisfies it.
type Database interface {
	Collection(name string) *mongo.Collection
}

// operationTimeouter is implemented by databases that carry a default
// per-operation timeout.
type operationTimeouter interface {
	OperationTimeout() time.Duration
}
