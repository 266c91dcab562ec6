package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aluiziolira/bookcatalog/parser"
)

// FetchError reports a non-200 response (StatusCode set) or a network-level
// failure (Err set) for URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error for %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PlanningError reports that the listing structure could not be discovered.
type PlanningError struct {
	URL    string
	Reason string
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("plan crawl from %s: %s", e.URL, e.Reason)
}

// errorTypeLabel maps a crawl failure to the error_type metric label.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 && fetchErr.Err == nil {
		switch fetchErr.StatusCode {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		default:
			return "http_status"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}

	var planErr *PlanningError
	if errors.As(err, &planErr) {
		return "planning"
	}
	var extractErr *parser.ExtractionError
	if errors.As(err, &extractErr) {
		return "extraction"
	}
	return "other"
}
