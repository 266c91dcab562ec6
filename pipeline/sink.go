// Package pipeline provides record sinks for scraped books and the validating
// decorator the crawl writes through.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/bookcatalog/models"
)

var (
	// ErrHeaderWritten is returned when SaveHeader is called twice.
	ErrHeaderWritten = errors.New("pipeline: header already written")
	// ErrHeaderMissing is returned when SaveItem precedes SaveHeader.
	ErrHeaderMissing = errors.New("pipeline: header not written")
	// ErrSinkClosed is returned when a sink is used after Close.
	ErrSinkClosed = errors.New("pipeline: sink closed")
	// ErrDuplicate is returned by Pipeline.SaveItem for a url already saved in
	// this run. Nothing is written; callers treat it as a skip.
	ErrDuplicate = errors.New("pipeline: duplicate url")
)

// Header is the column order of the flat-file format.
var Header = []string{"title", "price", "currency", "rating", "category", "img_url", "url"}

// RecordSink is an append-only destination for completed records.
// SaveHeader must be called exactly once before any SaveItem.
type RecordSink interface {
	SaveHeader() error
	SaveItem(book *models.Book) error
}

// Sink is a RecordSink that owns an output resource.
type Sink interface {
	RecordSink
	Close() error
}

// OpenSink acquires a sink for the given format: csv, json (JSONL) or dual.
func OpenSink(format, filename string) (Sink, error) {
	switch format {
	case "csv":
		return NewCSVSink(filename)
	case "json":
		return NewJSONLSink(filename)
	case "dual":
		return NewDualSink(filename, JSONLPath(filename))
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// WithSink opens a sink, hands it to fn and closes it on every exit path.
// A close failure is joined with the error returned by fn.
func WithSink(format, filename string, fn func(RecordSink) error) (err error) {
	sink, err := OpenSink(format, filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close sink: %w", cerr))
		}
	}()
	return fn(sink)
}

// JSONLPath derives the JSONL companion of a CSV path.
func JSONLPath(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + ".jsonl"
}

// headerGuard enforces the SaveHeader-once-then-SaveItem protocol.
type headerGuard struct {
	written bool
	closed  bool
}

func (g *headerGuard) markHeader() error {
	if g.closed {
		return ErrSinkClosed
	}
	if g.written {
		return ErrHeaderWritten
	}
	g.written = true
	return nil
}

func (g *headerGuard) requireHeader() error {
	if g.closed {
		return ErrSinkClosed
	}
	if !g.written {
		return ErrHeaderMissing
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
