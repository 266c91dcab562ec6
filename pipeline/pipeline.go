package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/bookcatalog/models"
	"github.com/aluiziolira/bookcatalog/parser"
)

// Pipeline validates and de-duplicates records before forwarding them to the
// wrapped sink. It is itself a RecordSink.
type Pipeline struct {
	next   RecordSink
	seen   *lru.Cache[string, struct{}]
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// Stats counts what the pipeline did with the records it received.
type Stats struct {
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// NewPipeline wraps next. dedupeSize bounds how many URLs are remembered.
func NewPipeline(next RecordSink, dedupeSize int, logger *slog.Logger) (*Pipeline, error) {
	if next == nil {
		return nil, fmt.Errorf("pipeline needs a sink")
	}
	seen, err := lru.New[string, struct{}](dedupeSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		next:   next,
		seen:   seen,
		logger: logger.With(slog.String("component", "pipeline")),
	}, nil
}

func (p *Pipeline) SaveHeader() error {
	return p.next.SaveHeader()
}

// SaveItem rejects invalid records with an error and drops a URL already
// seen in this run, returning ErrDuplicate.
func (p *Pipeline) SaveItem(book *models.Book) error {
	if err := parser.ValidateBook(book); err != nil {
		p.count(func(s *Stats) { s.Invalid++ })
		return fmt.Errorf("invalid record: %w", err)
	}

	if found, _ := p.seen.ContainsOrAdd(book.URL, struct{}{}); found {
		p.count(func(s *Stats) { s.Duplicates++ })
		p.logger.Debug("duplicate url skipped", slog.String("url", book.URL))
		return fmt.Errorf("%w: %s", ErrDuplicate, book.URL)
	}

	if err := p.next.SaveItem(book); err != nil {
		return err
	}
	p.count(func(s *Stats) { s.Saved++ })
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline) count(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
