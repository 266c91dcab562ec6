package pipeline

import (
	"sync"

	"github.com/aluiziolira/bookcatalog/models"
)

// MemorySink keeps records in memory.
type MemorySink struct {
	mu    sync.Mutex
	guard headerGuard
	books []models.Book
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) SaveHeader() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guard.markHeader()
}

func (m *MemorySink) SaveItem(book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard.requireHeader(); err != nil {
		return err
	}
	m.books = append(m.books, *book)
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	m.guard.closed = true
	m.mu.Unlock()
	return nil
}

// Books returns a copy of the records saved so far.
func (m *MemorySink) Books() []models.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Book, len(m.books))
	copy(out, m.books)
	return out
}
