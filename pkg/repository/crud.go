package repository

import "context"

// Reader provides read operations for documents
type Reader[T any] interface {
	GetAll(ctx context.Context) ([]T, error)
	GetByID(ctx context.Context, id string) (T, error)
}

// Writer provides write operations for documents
type Writer[T any] interface {
	Insert(ctx context.Context, doc T) error
	Update(ctx context.Context, doc T) error
	DeleteByID(ctx context.Context, id string) error
}

// Paginator provides page-based queries.
type Paginator[T any, P any] interface {
	// PaginateByFilter counts and fetches with the same optional substring filter.
	PaginateByFilter(ctx context.Context, req PageRequest) (Page[T], error)
	// PaginateWithExpression fetches with predicate unless req carries a substring filter.
	PaginateWithExpression(ctx context.Context, predicate P, req PageRequest) (Page[T], error)
}

// Repository combines Reader, Writer and Paginator for complete document access.
// P is the store-native predicate type.
type Repository[T any, P any] interface {
	Reader[T]
	Writer[T]
	Paginator[T, P]
}

// SortOrder defines the sort direction for queries.
type SortOrder string

// Sort order constants
const (
	// SortAsc sorts in ascending order
	SortAsc SortOrder = "asc"
	// SortDesc sorts in descending order
	SortDesc SortOrder = "desc"
)

// ParseSortOrder maps a direction marker to a SortOrder.
// Only the exact descending marker yields SortDesc; anything else is ascending.
func ParseSortOrder(direction string) SortOrder {
	if SortOrder(direction) == SortDesc {
		return SortDesc
	}
	return SortAsc
}
