package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/bookcatalog/models"
)

// ValidateBook ensures the scraper captured the required fields.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	if strings.TrimSpace(b.URL) == "" {
		return fmt.Errorf("book missing url for %s", b.Title)
	}
	if b.PriceMinor < 0 {
		return fmt.Errorf("book has negative price for %s", b.Title)
	}
	if b.Rating != nil && (*b.Rating < 1 || *b.Rating > 5) {
		return fmt.Errorf("book rating %d out of range for %s", *b.Rating, b.Title)
	}
	return nil
}
