// Package parser turns detail-page documents into typed book fields.
package parser

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/bookcatalog/models"
)

// Â shows up when the pound sign is double-decoded; it is never part of a symbol.
var priceRe = regexp.MustCompile(`([^0-9.Â]+)\s*([\d.]+)`)

var currencyCodes = map[string]string{
	"£":  "GBP",
	"€":  "EUR",
	"$":  "USD",
	"R$": "BRL",
}

var ratingWords = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// ExtractTitle returns the trimmed heading of the main product block.
func ExtractTitle(doc *goquery.Document) (string, error) {
	block := doc.Find("div.product_main").First()
	if block.Length() == 0 {
		return "", &ExtractionError{Field: "title", Reason: "product block not found"}
	}
	title := strings.TrimSpace(block.Find("h1").First().Text())
	if title == "" {
		return "", &ExtractionError{Field: "title", Reason: "heading is empty"}
	}
	return title, nil
}

// ParsePrice converts price text such as "£51.77" into a currency code and an
// amount in minor units. Text without a symbol and amount, or an amount too
// large to store, yields ("N/A", 0).
func ParsePrice(text string) (string, int64) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return models.CurrencyNotFound, 0
	}
	amount, err := strconv.ParseFloat(m[2], 64)
	if err != nil || amount < 0 {
		return models.CurrencyNotFound, 0
	}

	code, ok := currencyCodes[strings.TrimSpace(m[1])]
	if !ok {
		code = models.CurrencyUnknown
	}
	// Round half away from zero. Amounts must fit the store's INTEGER column.
	minor := math.Round(amount * 100)
	if math.IsNaN(minor) || math.IsInf(minor, 0) || minor > math.MaxInt32 {
		return models.CurrencyNotFound, 0
	}
	return code, int64(minor)
}

// ExtractPrice parses the first price element of the page.
func ExtractPrice(doc *goquery.Document) (string, int64) {
	return ParsePrice(doc.Find("p.price_color").First().Text())
}

// ExtractRating maps the star-rating modifier class to 1..5. The boolean is
// false when the marker is absent or its keyword is unknown.
func ExtractRating(doc *goquery.Document) (int, bool) {
	class, ok := doc.Find("p.star-rating").First().Attr("class")
	if !ok {
		return 0, false
	}
	return RatingFromClass(class)
}

// RatingFromClass looks for a rating keyword among the class names.
func RatingFromClass(class string) (int, bool) {
	for _, name := range strings.Fields(class) {
		if n, ok := ratingWords[name]; ok {
			return n, true
		}
	}
	return 0, false
}

// ExtractCategory returns the third breadcrumb item.
func ExtractCategory(doc *goquery.Document) (string, error) {
	items := doc.Find("ul.breadcrumb li")
	if items.Length() < 3 {
		return "", &ExtractionError{
			Field:  "category",
			Reason: "breadcrumb has " + strconv.Itoa(items.Length()) + " items, need 3",
		}
	}
	return strings.TrimSpace(items.Eq(2).Text()), nil
}

// ExtractImage resolves the gallery image source against base.
func ExtractImage(doc *goquery.Document, base *url.URL) (string, bool) {
	src, ok := doc.Find("div#product_gallery img").First().Attr("src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return "", false
	}
	if base == nil {
		return src, true
	}
	ref, err := base.Parse(src)
	if err != nil {
		return "", false
	}
	return ref.String(), true
}

// ExtractBook runs every extractor over a detail page and assembles a record.
func ExtractBook(doc *goquery.Document, pageURL string, base *url.URL) (*models.Book, error) {
	title, err := ExtractTitle(doc)
	if err != nil {
		return nil, err
	}
	category, err := ExtractCategory(doc)
	if err != nil {
		return nil, err
	}

	currency, minor := ExtractPrice(doc)
	book := &models.Book{
		Title:      title,
		PriceMinor: minor,
		Currency:   currency,
		Category:   category,
		URL:        pageURL,
	}
	if rating, ok := ExtractRating(doc); ok {
		book.Rating = models.IntPtr(rating)
	}
	if img, ok := ExtractImage(doc, base); ok {
		book.ImageURL = img
	}
	return book, nil
}
