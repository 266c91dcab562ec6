// Package api exposes the catalog read endpoints and the admin job surface
// over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aluiziolira/bookcatalog/auth"
	"github.com/aluiziolira/bookcatalog/config"
	"github.com/aluiziolira/bookcatalog/httpx"
	"github.com/aluiziolira/bookcatalog/jobs"
	"github.com/aluiziolira/bookcatalog/models"
	"github.com/aluiziolira/bookcatalog/store"
)

// Catalog is the read side of the store.
type Catalog interface {
	Search(ctx context.Context, f store.Filter, p store.PageRequest) (store.Page, error)
	GetByID(ctx context.Context, id int64) (models.StoredBook, error)
	Categories(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// JobControl triggers and reports background jobs.
type JobControl interface {
	Trigger(kind jobs.Kind) (jobs.Outcome, error)
	Status(kind jobs.Kind) (jobs.Status, error)
}

// Options wires a Server. Catalog, Jobs and Tokens are required.
type Options struct {
	Catalog Catalog
	Jobs    JobControl
	Tokens  *auth.Tokens
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Server  config.ServerConfig
	Logger  *slog.Logger
}

// Server is the HTTP API over the catalog and the job runner.
type Server struct {
	catalog Catalog
	jobs    JobControl
	tokens  *auth.Tokens
	metrics http.Handler
	limiter *httpx.RateLimiter
	logger  *slog.Logger
}

// NewServer builds a Server from opts. A zero rate limit disables limiting.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *httpx.RateLimiter
	if opts.Server.RateLimitRPS > 0 {
		limiter = httpx.NewRateLimiter(opts.Server.RateLimitRPS, opts.Server.RateLimitBurst)
	}
	return &Server{
		catalog: opts.Catalog,
		jobs:    opts.Jobs,
		tokens:  opts.Tokens,
		metrics: opts.Metrics,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "api")),
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.health)
	mux.HandleFunc("GET /api/v1/books", s.listBooks)
	mux.HandleFunc("GET /api/v1/books/search", s.searchBooks)
	mux.HandleFunc("GET /api/v1/books/{id}", s.getBook)
	mux.HandleFunc("GET /api/v1/categories", s.categories)

	authHandler := auth.NewHandler(s.tokens, s.logger)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)

	admin := auth.Middleware(s.tokens)
	mux.Handle("POST /api/v1/admin/scrape", admin(s.trigger(jobs.KindScrape)))
	mux.Handle("GET /api/v1/admin/scrape/status", admin(s.status(jobs.KindScrape)))
	mux.Handle("POST /api/v1/admin/import", admin(s.trigger(jobs.KindImport)))
	mux.Handle("GET /api/v1/admin/import/status", admin(s.status(jobs.KindImport)))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	mws := []httpx.Middleware{
		httpx.RequestID(),
		httpx.AccessLog(s.logger),
		httpx.Recover(s.logger),
	}
	if s.limiter != nil {
		mws = append(mws, s.limiter.Middleware())
	}
	mws = append(mws, httpx.OTel("bookcatalog"))
	return httpx.Chain(mux, mws...)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.Any("error", err))
		httpx.JSONError(w, r, http.StatusInternalServerError, "UNHEALTHY", "database disconnected", nil)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	}, nil)
}
