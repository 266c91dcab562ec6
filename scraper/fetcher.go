package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/bookcatalog/config"
)

// PageFetcher fetches a URL and parses it into a document.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// Fetcher is a PageFetcher backed by a synchronous colly collector. It sends
// a fixed user agent and never retries.
type Fetcher struct {
	collector *colly.Collector
	metrics   *Metrics
	logger    *slog.Logger
}

// NewFetcher builds a fetcher from the scraper settings.
func NewFetcher(cfg config.ScraperConfig, metrics *Metrics, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Fetcher{
		collector: collector,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "fetcher")),
	}
}

// WithTransport replaces the HTTP transport, e.g. with a mock in tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch issues a GET for rawURL. Any status other than 200 yields a
// FetchError carrying the status; transport failures yield a FetchError
// wrapping the cause.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	var (
		status   int
		body     []byte
		finalURL *url.URL
	)
	c := f.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		finalURL = r.Request.URL
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	visitErr := c.Visit(rawURL)
	f.metrics.ObserveDuration(time.Since(start))

	var fetchErr *FetchError
	switch {
	case status != 0 && status != http.StatusOK:
		fetchErr = &FetchError{URL: rawURL, StatusCode: status}
	case visitErr != nil:
		fetchErr = &FetchError{URL: rawURL, StatusCode: status, Err: visitErr}
	}
	if fetchErr != nil {
		f.metrics.IncError(fetchErr)
		f.logger.Error("fetch failed",
			slog.String("url", rawURL),
			slog.String("category", errorTypeLabel(fetchErr)),
			slog.Any("error", fetchErr),
		)
		return nil, fetchErr
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: status, Err: fmt.Errorf("parse html: %w", err)}
	}
	doc.Url = finalURL
	f.logger.Debug("fetched", slog.String("url", rawURL), slog.Int("bytes", len(body)))
	return doc, nil
}
