// Package importer loads the scraper's flat file into the durable store,
// inserting only records whose url is not stored yet.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/aluiziolira/bookcatalog/models"
)

const defaultCurrency = "GBP"

// Repository is the part of the store the import needs. Both calls are
// expected to be atomic.
type Repository interface {
	ExistingURLs(ctx context.Context) (map[string]struct{}, error)
	BulkInsert(ctx context.Context, books []models.Book) error
}

// ParseError identifies the source line (1-based, header is line 1) where
// the offending row starts.
type ParseError struct {
	Row   int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("error processing CSV line %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("error processing CSV line %d: %s: %v", e.Row, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Result counts the outcome of one import.
type Result struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Service imports flat files into a Repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService returns an import service writing to repo.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger.With(slog.String("component", "importer"))}
}

// ImportFromFile imports the file at path.
func (s *Service) ImportFromFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open import source: %w", err)
	}
	defer f.Close()

	res, err := s.Import(ctx, f)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("import finished",
		slog.String("source", path),
		slog.Int("inserted", res.Inserted),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Import parses every row before touching the store, so a malformed row
// aborts the import with nothing inserted.
func (s *Service) Import(ctx context.Context, r io.Reader) (Result, error) {
	candidates, err := ReadBooks(r)
	if err != nil {
		return Result{}, err
	}

	existing, err := s.repo.ExistingURLs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load existing urls: %w", err)
	}

	fresh := make([]models.Book, 0, len(candidates))
	for _, b := range candidates {
		if _, ok := existing[b.URL]; ok {
			continue
		}
		// Later duplicates inside the same source count as skipped.
		existing[b.URL] = struct{}{}
		fresh = append(fresh, b)
	}

	if err := s.repo.BulkInsert(ctx, fresh); err != nil {
		return Result{}, fmt.Errorf("bulk insert: %w", err)
	}

	s.logger.Debug("import batch stored", slog.Int("candidates", len(candidates)), slog.Int("inserted", len(fresh)))
	return Result{Inserted: len(fresh), Skipped: len(candidates) - len(fresh)}, nil
}

// ReadBooks parses the flat-file format. Columns are located by header name.
func ReadBooks(r io.Reader) ([]models.Book, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Row: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &ParseError{Row: 1, Err: err}
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"title", "price", "url"} {
		if _, ok := cols[required]; !ok {
			return nil, &ParseError{Row: 1, Field: required, Err: errors.New("missing column")}
		}
	}

	var books []models.Book
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			row := 0
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				row = csvErr.StartLine
			}
			return nil, &ParseError{Row: row, Err: err}
		}

		row, _ := reader.FieldPos(0)
		book, err := parseRecord(record, cols, row)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func parseRecord(record []string, cols map[string]int, row int) (models.Book, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	fail := func(name string, err error) (models.Book, error) {
		return models.Book{}, &ParseError{Row: row, Field: name, Err: err}
	}

	book := models.Book{
		Title:    field("title"),
		Currency: field("currency"),
		Category: field("category"),
		ImageURL: field("img_url"),
		URL:      field("url"),
	}
	if book.Title == "" {
		return fail("title", errors.New("required"))
	}
	if book.URL == "" {
		return fail("url", errors.New("required"))
	}
	if book.Currency == "" {
		book.Currency = defaultCurrency
	}

	price := field("price")
	if price == "" {
		return fail("price", errors.New("required"))
	}
	minor, err := strconv.ParseInt(price, 10, 64)
	if err != nil {
		return fail("price", fmt.Errorf("not an integer: %q", price))
	}
	if minor < 0 {
		return fail("price", fmt.Errorf("negative: %d", minor))
	}
	if minor > math.MaxInt32 {
		return fail("price", fmt.Errorf("out of range: %d", minor))
	}
	book.PriceMinor = minor

	if rating := field("rating"); rating != "" {
		n, err := strconv.Atoi(rating)
		if err != nil {
			return fail("rating", fmt.Errorf("not an integer: %q", rating))
		}
		if n < 1 || n > 5 {
			return fail("rating", fmt.Errorf("out of range: %d", n))
		}
		book.Rating = models.IntPtr(n)
	}
	return book, nil
}
