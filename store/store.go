// Package store persists book records in PostgreSQL and serves the read
// queries behind the API.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/aluiziolira/bookcatalog/models"
)

const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// ErrNotFound is returned when a book id does not exist.
var ErrNotFound = errors.New("store: book not found")

// Repository is the full set of operations the store offers.
type Repository interface {
	ExistingURLs(ctx context.Context) (map[string]struct{}, error)
	BulkInsert(ctx context.Context, books []models.Book) error
	Search(ctx context.Context, f Filter, p PageRequest) (Page, error)
	GetByID(ctx context.Context, id int64) (models.StoredBook, error)
	Categories(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Filter narrows a search. Zero values do not filter.
type Filter struct {
	Title     string   // case-insensitive substring
	Category  string   // case-insensitive equality
	MinRating *int     // rating >= MinRating
	MaxPrice  *float64 // major units, price/100 <= MaxPrice
}

// Empty reports whether no filter is set.
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.Title) == "" && strings.TrimSpace(f.Category) == "" &&
		f.MinRating == nil && f.MaxPrice == nil
}

// PageRequest selects one page of results, 1-based.
type PageRequest struct {
	Page    int
	PerPage int
}

// Normalized clamps the request to valid bounds.
func (p PageRequest) Normalized() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.PerPage
}

// Page is one page of books ordered by id, plus the total match count.
type Page struct {
	Items []models.StoredBook
	Total int
}

// TotalPages returns how many pages of perPage cover total items.
func TotalPages(total, perPage int) int {
	if perPage < 1 || total < 1 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
