package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/bookcatalog/models"
)

// MemoryRepo is an in-process Repository with the same url uniqueness rule
// as the books table.
type MemoryRepo struct {
	mu     sync.RWMutex
	books  []models.StoredBook
	urls   map[string]struct{}
	nextID int64
}

// NewMemoryRepo returns an empty repository; ids start at 1.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{urls: make(map[string]struct{}), nextID: 1}
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }

func (m *MemoryRepo) ExistingURLs(context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{}, len(m.urls))
	for u := range m.urls {
		out[u] = struct{}{}
	}
	return out, nil
}

// BulkInsert adds all books or none.
func (m *MemoryRepo) BulkInsert(_ context.Context, books []models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[string]struct{}, len(books))
	for _, b := range books {
		if _, ok := m.urls[b.URL]; ok {
			return fmt.Errorf("duplicate url %q", b.URL)
		}
		if _, ok := batch[b.URL]; ok {
			return fmt.Errorf("duplicate url %q", b.URL)
		}
		batch[b.URL] = struct{}{}
	}

	now := time.Now().UTC()
	for _, b := range books {
		m.books = append(m.books, models.StoredBook{ID: m.nextID, Book: b, CreatedAt: now})
		m.urls[b.URL] = struct{}{}
		m.nextID++
	}
	return nil
}

func (m *MemoryRepo) Search(_ context.Context, f Filter, p PageRequest) (Page, error) {
	p = p.Normalized()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.StoredBook
	for _, b := range m.books {
		if f.matches(b.Book) {
			matched = append(matched, b)
		}
	}

	items := []models.StoredBook{}
	if start := p.offset(); start < len(matched) {
		end := min(start+p.PerPage, len(matched))
		items = append(items, matched[start:end]...)
	}
	return Page{Items: items, Total: len(matched)}, nil
}

func (f Filter) matches(b models.Book) bool {
	if t := strings.TrimSpace(f.Title); t != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(t)) {
		return false
	}
	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(b.Category, c) {
		return false
	}
	if f.MinRating != nil && (b.Rating == nil || *b.Rating < *f.MinRating) {
		return false
	}
	if f.MaxPrice != nil && float64(b.PriceMinor)/100 > *f.MaxPrice {
		return false
	}
	return true
}

func (m *MemoryRepo) GetByID(_ context.Context, id int64) (models.StoredBook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.books {
		if b.ID == id {
			return b, nil
		}
	}
	return models.StoredBook{}, ErrNotFound
}

func (m *MemoryRepo) Categories(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, b := range m.books {
		if b.Category == "" {
			continue
		}
		if _, ok := seen[b.Category]; ok {
			continue
		}
		seen[b.Category] = struct{}{}
		out = append(out, b.Category)
	}
	sort.Strings(out)
	return out, nil
}
