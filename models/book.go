// Package models defines data structures shared by the crawler, the sinks and the store.
package models

import "time"

// Currency sentinels used when a price cannot be mapped to a known code.
const (
	CurrencyUnknown  = "UNKNOWN"
	CurrencyNotFound = "N/A"
)

// Book is one catalog record produced by the crawl and consumed by the import.
// Rating is nil when the page carries no rating marker. Category and ImageURL
// are empty when absent.
type Book struct {
	Title      string `json:"title"`
	PriceMinor int64  `json:"price"`
	Currency   string `json:"currency"`
	Rating     *int   `json:"rating"`
	Category   string `json:"category,omitempty"`
	ImageURL   string `json:"img_url,omitempty"`
	URL        string `json:"url"`
}

// StoredBook is a Book persisted by the store with its assigned identity.
type StoredBook struct {
	ID int64 `json:"id"`
	Book
	CreatedAt time.Time `json:"created_at"`
}

// ScrapeResult holds the overall result of one crawl run.
type ScrapeResult struct {
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	PageCount    int       `json:"page_count"`
	URLCount     int       `json:"url_count"`
	SavedCount   int       `json:"saved_count"`
	RequestCount int       `json:"request_count"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
