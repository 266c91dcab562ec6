package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aluiziolira/bookcatalog/config"
	"github.com/aluiziolira/bookcatalog/models"
)

var copyColumns = []string{"title", "price", "currency", "rating", "category", "img_url", "url"}

const selectColumns = `id, title, price, currency, rating, COALESCE(category, ''), COALESCE(img_url, ''), url, created_at`

// PostgresRepo is the PostgreSQL-backed Repository.
type PostgresRepo struct {
	db *pgxpool.Pool
}

// NewPostgresRepo returns a repository over db.
func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Open creates a pool for cfg.DSN and pings it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database (%s): %w", RedactDSN(cfg.DSN), err)
	}
	return pool, nil
}

// RedactDSN hides the credentials of a URL-style DSN.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// ExistingURLs returns every stored url.
func (r *PostgresRepo) ExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, "SELECT url FROM books")
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		out[u] = struct{}{}
	}
	return out, rows.Err()
}

// BulkInsert copies books in a single transaction; nothing is kept if any row fails.
func (r *PostgresRepo) BulkInsert(ctx context.Context, books []models.Book) error {
	if len(books) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"books"}, copyColumns,
		pgx.CopyFromSlice(len(books), func(i int) ([]any, error) {
			b := books[i]
			return []any{b.Title, b.PriceMinor, b.Currency, b.Rating, nullable(b.Category), nullable(b.ImageURL), b.URL}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy books: %w", err)
	}
	return tx.Commit(ctx)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Search returns one page of books matching f, ordered by id.
func (r *PostgresRepo) Search(ctx context.Context, f Filter, p PageRequest) (Page, error) {
	p = p.Normalized()

	clauses := []string{"1=1"}
	args := []any{}
	argn := 1

	if t := strings.TrimSpace(f.Title); t != "" {
		clauses = append(clauses, fmt.Sprintf("title ILIKE '%%' || $%d || '%%'", argn))
		args = append(args, t)
		argn++
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(category) = LOWER($%d)", argn))
		args = append(args, c)
		argn++
	}
	if f.MinRating != nil {
		clauses = append(clauses, fmt.Sprintf("rating >= $%d", argn))
		args = append(args, *f.MinRating)
		argn++
	}
	if f.MaxPrice != nil {
		clauses = append(clauses, fmt.Sprintf("price / 100.0 <= $%d", argn))
		args = append(args, *f.MaxPrice)
		argn++
	}

	where := "WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM books "+where, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count books: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT %s
		FROM books
		%s
		ORDER BY id ASC
		LIMIT $%d OFFSET $%d`,
		selectColumns, where, argn, argn+1)

	argsWithPage := append([]any{}, args...)
	argsWithPage = append(argsWithPage, p.PerPage, p.offset())
	rows, err := r.db.Query(ctx, dataSQL, argsWithPage...)
	if err != nil {
		return Page{}, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	items := []models.StoredBook{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return Page{}, err
		}
		items = append(items, b)
	}
	return Page{Items: items, Total: total}, rows.Err()
}

func (r *PostgresRepo) GetByID(ctx context.Context, id int64) (models.StoredBook, error) {
	row := r.db.QueryRow(ctx, "SELECT "+selectColumns+" FROM books WHERE id = $1", id)
	b, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StoredBook{}, ErrNotFound
	}
	return b, err
}

func (r *PostgresRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT category FROM books
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanBook(row pgx.Row) (models.StoredBook, error) {
	var (
		b      models.StoredBook
		rating *int16
	)
	err := row.Scan(&b.ID, &b.Title, &b.PriceMinor, &b.Currency, &rating, &b.Category, &b.ImageURL, &b.URL, &b.CreatedAt)
	if err != nil {
		return models.StoredBook{}, err
	}
	if rating != nil {
		b.Rating = models.IntPtr(int(*rating))
	}
	return b, nil
}
