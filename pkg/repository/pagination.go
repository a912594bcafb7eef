package repository

import (
	"fmt"
	"math"
	"strings"
)

// PageRequest holds the query parameters of a paginated call.
// It is a plain value: the repository never mutates it.
type PageRequest struct {
	Page          int
	PageSize      int
	SortField     string
	SortDirection SortOrder
	FilterField   string
	FilterValue   string
}

// Offset calculates the number of documents to skip.
// It saturates at math.MaxInt64 instead of wrapping.
func (r PageRequest) Offset() int64 {
	if r.Page <= 0 || r.PageSize <= 0 {
		return 0
	}
	if offsetOverflows(r.Page, r.PageSize) {
		return math.MaxInt64
	}
	return int64(r.Page-1) * int64(r.PageSize)
}

func offsetOverflows(page, pageSize int) bool {
	return int64(page-1) > math.MaxInt64/int64(pageSize)
}

// Limit returns the page size for store queries
func (r PageRequest) Limit() int64 {
	return int64(r.PageSize)
}

// HasFilter reports whether a substring filter is requested.
func (r PageRequest) HasFilter() bool {
	return strings.TrimSpace(r.FilterField) != "" && r.FilterValue != ""
}

// Validate checks the page coordinates.
func (r PageRequest) Validate() error {
	if r.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidRequest, r.Page)
	}
	if r.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be > 0, got %d", ErrInvalidRequest, r.PageSize)
	}
	if offsetOverflows(r.Page, r.PageSize) {
		return fmt.Errorf("%w: page %d of size %d is out of range", ErrInvalidRequest, r.Page, r.PageSize)
	}
	return nil
}

// Page is the result of a paginated call.
type Page[T any] struct {
	Request    PageRequest
	Items      []T
	TotalRows  int64
	TotalPages int64
}

// NewPage assembles a page once both the count and the fetch have completed.
func NewPage[T any](req PageRequest, items []T, totalRows int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Request:    req,
		Items:      items,
		TotalRows:  totalRows,
		TotalPages: TotalPages(totalRows, int64(req.PageSize)),
	}
}

// TotalPages returns ceil(rows / pageSize).
// The remainder is kept until the ceiling step, so non-exact divisions round up.
func TotalPages(rows, pageSize int64) int64 {
	if rows <= 0 || pageSize <= 0 {
		return 0
	}
	pages := rows / pageSize
	if rows%pageSize != 0 {
		pages++
	}
	return pages
}
