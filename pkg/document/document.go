// Package document defines the contract a storable entity satisfies and the
// binding from a document type to the collection it lives in.
package document

// Document is an entity with a unique string identifier.
// Implementations are used through pointers so the repository can assign an
// identifier on insert.
type Document interface {
	GetID() string
	SetID(id string)
}

// CollectionNamer lets a document type declare its own collection name.
// CollectionName must not depend on receiver state: it is called on a zero value.
type CollectionNamer interface {
	CollectionName() string
}
