package shared

import (
	"math"
	"strings"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// ListFilter is the common paging/search input for list endpoints.
type ListFilter struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}

// Normalize fills defaults.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	f.Search = strings.TrimSpace(f.Search)
	if !strings.EqualFold(f.SortDir, "desc") {
		f.SortDir = "asc"
	} else {
		f.SortDir = "desc"
	}
	return f
}

// OrderBy resolves SortBy against an allow-list of columns and returns a
// safe ORDER BY clause, falling back to def.
func (f ListFilter) OrderBy(allowed map[string]string, def string) string {
	col, ok := allowed[f.SortBy]
	if !ok {
		col = def
	}
	return col + " " + strings.ToUpper(f.Normalize().SortDir)
}

// Page wraps a listing result.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NewPage builds a Page, never returning a nil slice.
func NewPage[T any](items []T, f ListFilter, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	f = f.Normalize()
	return Page[T]{Items: items, Pagination: NewPagination(f.Page, f.Limit, total)}
}
