package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var pagerRe = regexp.MustCompile(`of\s+(\d+)`)

// Planner discovers how many listing pages exist and which detail pages they
// link to.
type Planner struct {
	fetcher PageFetcher
	metrics *Metrics
	logger  *slog.Logger
}

// NewPlanner returns a planner that fetches listing pages through fetcher.
func NewPlanner(fetcher PageFetcher, metrics *Metrics, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		fetcher: fetcher,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "planner")),
	}
}

// Discover reads the "Page 1 of N" pager on the first listing page and
// returns N. A missing pager is a PlanningError, never zero pages.
func (p *Planner) Discover(ctx context.Context, startURL string) (int, error) {
	p.metrics.IncRequest("listing")
	doc, err := p.fetcher.Fetch(ctx, startURL)
	if err != nil {
		return 0, err
	}

	pager := doc.Find("ul.pager")
	if pager.Length() == 0 {
		return 0, p.fail(&PlanningError{URL: startURL, Reason: "pager element not found"})
	}
	m := pagerRe.FindStringSubmatch(pager.Text())
	if m == nil {
		return 0, p.fail(&PlanningError{URL: startURL, Reason: "pager text has no page count"})
	}
	total, err := strconv.Atoi(m[1])
	if err != nil || total < 1 {
		return 0, p.fail(&PlanningError{URL: startURL, Reason: fmt.Sprintf("invalid page count %q", m[1])})
	}

	p.logger.Info("listing pages discovered", slog.Int("pages", total))
	return total, nil
}

// EnumerateDetailURLs fetches listing pages 1..totalPages under baseURL and
// returns every product link, in page order then document order.
func (p *Planner) EnumerateDetailURLs(ctx context.Context, baseURL string, totalPages int) ([]string, error) {
	var urls []string
	for page := 1; page <= totalPages; page++ {
		pageURL := ListingURL(baseURL, page)

		p.metrics.IncRequest("listing")
		doc, err := p.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		links, err := detailLinks(doc, pageURL)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("listing page parsed",
			slog.Int("page", page),
			slog.Int("links", len(links)),
		)
		urls = append(urls, links...)
	}
	return urls, nil
}

// ListingURL returns the URL of listing page n.
func ListingURL(baseURL string, n int) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return fmt.Sprintf("%spage-%d.html", baseURL, n)
}

func detailLinks(doc *goquery.Document, pageURL string) ([]string, error) {
	base := doc.Url
	if base == nil {
		parsed, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("parse listing url: %w", err)
		}
		base = parsed
	}

	var links []string
	doc.Find("article.product_pod h3 a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		links = append(links, ref.String())
	})
	return links, nil
}

func (p *Planner) fail(err *PlanningError) error {
	p.metrics.IncError(err)
	p.logger.Error("crawl planning failed", slog.String("url", err.URL), slog.String("reason", err.Reason))
	return err
}
