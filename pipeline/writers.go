package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/aluiziolira/bookcatalog/models"
)

// CSVSink writes records to the flat-file format read by the importer.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
	guard  headerGuard
	mu     sync.Mutex
}

// NewCSVSink creates (or truncates) filename.
func NewCSVSink(filename string) (*CSVSink, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	return &CSVSink{
		file:   f,
		writer: csv.NewWriter(f),
	}, nil
}

// SaveHeader writes the header row.
func (cs *CSVSink) SaveHeader() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := cs.guard.markHeader(); err != nil {
		return err
	}
	if err := cs.writer.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	cs.writer.Flush()
	if err := cs.writer.Error(); err != nil {
		return fmt.Errorf("flush csv header: %w", err)
	}
	return nil
}

// SaveItem appends one row and flushes it.
func (cs *CSVSink) SaveItem(book *models.Book) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := cs.guard.requireHeader(); err != nil {
		return err
	}
	if err := cs.writer.Write(csvRecord(book)); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	cs.writer.Flush()
	if err := cs.writer.Error(); err != nil {
		return fmt.Errorf("flush csv record: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle. Calling it again is a no-op.
func (cs *CSVSink) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.guard.closed {
		return nil
	}
	cs.guard.closed = true

	cs.writer.Flush()
	if err := cs.writer.Error(); err != nil {
		cs.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cs.file.Close()
}

func csvRecord(book *models.Book) []string {
	rating := ""
	if book.Rating != nil {
		rating = strconv.Itoa(*book.Rating)
	}
	return []string{
		book.Title,
		strconv.FormatInt(book.PriceMinor, 10),
		book.Currency,
		rating,
		book.Category,
		book.ImageURL,
		book.URL,
	}
}

// JSONLSink writes newline-delimited JSON records. It has no header line but
// follows the same SaveHeader protocol as the CSV sink.
type JSONLSink struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	guard   headerGuard
	mu      sync.Mutex
}

// NewJSONLSink creates (or truncates) filename.
func NewJSONLSink(filename string) (*JSONLSink, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONLSink{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// SaveHeader arms the sink.
func (js *JSONLSink) SaveHeader() error {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.guard.markHeader()
}

// SaveItem appends one JSON line and flushes it.
func (js *JSONLSink) SaveItem(book *models.Book) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if err := js.guard.requireHeader(); err != nil {
		return err
	}
	if err := js.encoder.Encode(book); err != nil {
		return fmt.Errorf("encode json record: %w", err)
	}
	if err := js.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (js *JSONLSink) Close() error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.guard.closed {
		return nil
	}
	js.guard.closed = true

	if err := js.writer.Flush(); err != nil {
		js.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return js.file.Close()
}
