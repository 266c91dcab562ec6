package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aluiziolira/bookcatalog/config"
	"github.com/aluiziolira/bookcatalog/models"
	"github.com/aluiziolira/bookcatalog/parser"
	"github.com/aluiziolira/bookcatalog/pipeline"
)

// Scraper drives planner, fetcher and extractors over the whole catalog and
// streams one record at a time into a sink.
type Scraper struct {
	cfg     config.ScraperConfig
	base    *url.URL
	fetcher PageFetcher
	planner *Planner
	metrics *Metrics
	logger  *slog.Logger
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg config.ScraperConfig, fetcher PageFetcher, metrics *Metrics, logger *slog.Logger) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("scraper needs a fetcher")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scraper{
		cfg:     cfg,
		base:    parsed,
		fetcher: fetcher,
		planner: NewPlanner(fetcher, metrics, logger),
		metrics: metrics,
		logger:  logger.With(slog.String("component", "scraper")),
	}, nil
}

// Run crawls every detail page in enumeration order and hands each record to
// sink as soon as it is extracted. The first fetch or extraction failure
// aborts the run.
func (s *Scraper) Run(ctx context.Context, sink pipeline.RecordSink) (*models.ScrapeResult, error) {
	result := &models.ScrapeResult{StartTime: time.Now()}

	if err := sink.SaveHeader(); err != nil {
		return nil, fmt.Errorf("save header: %w", err)
	}

	totalPages, err := s.planner.Discover(ctx, s.cfg.StartURL())
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxPages > 0 && totalPages > s.cfg.MaxPages {
		s.logger.Info("capping listing pages", slog.Int("discovered", totalPages), slog.Int("max_pages", s.cfg.MaxPages))
		totalPages = s.cfg.MaxPages
	}
	s.metrics.SetPagesDiscovered(totalPages)
	result.PageCount = totalPages
	result.RequestCount = 1 + totalPages

	urls, err := s.planner.EnumerateDetailURLs(ctx, s.cfg.BaseURL, totalPages)
	if err != nil {
		return nil, err
	}
	result.URLCount = len(urls)

	for i, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl interrupted after %d of %d books: %w", i, len(urls), err)
		}

		s.metrics.IncRequest("detail")
		result.RequestCount++
		doc, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		book, err := parser.ExtractBook(doc, pageURL, s.base)
		if err != nil {
			s.metrics.IncError(err)
			return nil, fmt.Errorf("extract %s: %w", pageURL, err)
		}

		s.logger.Info("processing book",
			slog.Int("index", i+1),
			slog.Int("total", len(urls)),
			slog.String("title", book.Title),
			slog.String("url", book.URL),
		)
		if err := sink.SaveItem(book); err != nil {
			if errors.Is(err, pipeline.ErrDuplicate) {
				continue
			}
			return nil, fmt.Errorf("save %s: %w", pageURL, err)
		}
		s.metrics.IncItems()
		result.SavedCount++
	}

	result.EndTime = time.Now()
	return result, nil
}

// RunToFile opens the configured sink, wraps it in the validating pipeline
// and runs the crawl. The sink is released on every exit path.
func (s *Scraper) RunToFile(ctx context.Context, out config.OutputConfig) (*models.ScrapeResult, error) {
	var result *models.ScrapeResult
	err := pipeline.WithSink(out.Format, out.File, func(sink pipeline.RecordSink) error {
		p, err := pipeline.NewPipeline(sink, s.cfg.DedupeMaxSize, s.logger)
		if err != nil {
			return err
		}
		result, err = s.Run(ctx, p)
		if err != nil {
			return err
		}
		stats := p.Stats()
		s.logger.Info("crawl finished",
			slog.Int("saved", stats.Saved),
			slog.Int("duplicates", stats.Duplicates),
			slog.String("output", out.File),
			slog.Duration("elapsed", result.EndTime.Sub(result.StartTime)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
