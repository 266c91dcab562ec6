package parser

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/bookcatalog/models"
)

const detailHTML = `<html><body>
<ul class="breadcrumb">
  <li><a href="../../index.html">Home</a></li>
  <li><a href="../category/books_1/index.html">Books</a></li>
  <li><a href="../category/books/poetry_23/index.html">Poetry</a></li>
  <li class="active">A Light in the Attic</li>
</ul>
<div class="row">
  <div class="col-sm-6">
    <div id="product_gallery" class="carousel">
      <div class="thumbnail"><div class="carousel-inner"><div class="item active">
        <img src="../../media/cache/fe/72/fe72aea293c.jpg" alt="A Light in the Attic" />
      </div></div></div>
    </div>
  </div>
  <div class="col-sm-6 product_main">
    <h1>  A Light in the Attic </h1>
    <p class="price_color">£51.77</p>
    <p class="instock availability">In stock (22 available)</p>
    <p class="star-rating Three"><i class="icon-star"></i></p>
  </div>
</div>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantCurrency string
		wantMinor    int64
	}{
		{name: "pound", input: "£51.77", wantCurrency: "GBP", wantMinor: 5177},
		{name: "dollar one decimal", input: "$12.0", wantCurrency: "USD", wantMinor: 1200},
		{name: "euro", input: "€9.99", wantCurrency: "EUR", wantMinor: 999},
		{name: "real", input: "R$ 12.50", wantCurrency: "BRL", wantMinor: 1250},
		{name: "double decoded pound", input: "Â£51.77", wantCurrency: "GBP", wantMinor: 5177},
		{name: "surrounding whitespace", input: "  £10.50  ", wantCurrency: "GBP", wantMinor: 1050},
		{name: "unknown symbol", input: "¥300", wantCurrency: "UNKNOWN", wantMinor: 30000},
		{name: "half rounds away from zero", input: "£0.125", wantCurrency: "GBP", wantMinor: 13},
		{name: "no symbol", input: "25.99", wantCurrency: "N/A", wantMinor: 0},
		{name: "no amount", input: "abc", wantCurrency: "N/A", wantMinor: 0},
		{name: "malformed amount", input: "£1.2.3", wantCurrency: "N/A", wantMinor: 0},
		{name: "empty", input: "", wantCurrency: "N/A", wantMinor: 0},
		{name: "overflows int64", input: "£99999999999999999999.00", wantCurrency: "N/A", wantMinor: 0},
		{name: "above integer column", input: "£21474836.48", wantCurrency: "N/A", wantMinor: 0},
		{name: "largest storable", input: "£21474836.47", wantCurrency: "GBP", wantMinor: 2147483647},
		{name: "infinite", input: "£1" + strings.Repeat("0", 400), wantCurrency: "N/A", wantMinor: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			currency, minor := ParsePrice(tt.input)
			if currency != tt.wantCurrency || minor != tt.wantMinor {
				t.Errorf("ParsePrice(%q) = (%q, %d), want (%q, %d)", tt.input, currency, minor, tt.wantCurrency, tt.wantMinor)
			}
		})
	}
}

func TestRatingFromClass(t *testing.T) {
	tests := []struct {
		class  string
		want   int
		wantOK bool
	}{
		{class: "star-rating One", want: 1, wantOK: true},
		{class: "star-rating Two", want: 2, wantOK: true},
		{class: "star-rating Three", want: 3, wantOK: true},
		{class: "star-rating Four", want: 4, wantOK: true},
		{class: "star-rating Five", want: 5, wantOK: true},
		{class: "star-rating Zero", want: 0, wantOK: false},
		{class: "star-rating three", want: 0, wantOK: false},
		{class: "star-rating", want: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			got, ok := RatingFromClass(tt.class)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("RatingFromClass(%q) = (%d, %v), want (%d, %v)", tt.class, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractRatingAbsent(t *testing.T) {
	doc := mustDoc(t, `<div class="product_main"><h1>x</h1></div>`)
	if got, ok := ExtractRating(doc); ok {
		t.Fatalf("expected no rating, got %d", got)
	}
}

func TestExtractTitle(t *testing.T) {
	title, err := ExtractTitle(mustDoc(t, detailHTML))
	if err != nil {
		t.Fatalf("extract title: %v", err)
	}
	if title != "A Light in the Attic" {
		t.Fatalf("title = %q", title)
	}

	_, err = ExtractTitle(mustDoc(t, `<html><body><h1>Orphan heading</h1></body></html>`))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) || extractErr.Field != "title" {
		t.Fatalf("expected title ExtractionError, got %v", err)
	}
}

func TestExtractCategory(t *testing.T) {
	category, err := ExtractCategory(mustDoc(t, detailHTML))
	if err != nil {
		t.Fatalf("extract category: %v", err)
	}
	if category != "Poetry" {
		t.Fatalf("category = %q, want Poetry", category)
	}
}

func TestExtractCategoryShortBreadcrumb(t *testing.T) {
	doc := mustDoc(t, `<ul class="breadcrumb"><li>Home</li><li>Books</li></ul>`)
	_, err := ExtractCategory(doc)
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extractErr.Field != "category" {
		t.Fatalf("field = %q, want category", extractErr.Field)
	}
}

func TestExtractImage(t *testing.T) {
	base, _ := url.Parse("https://books.toscrape.com/catalogue/")

	img, ok := ExtractImage(mustDoc(t, detailHTML), base)
	if !ok {
		t.Fatalf("expected image")
	}
	if img != "https://books.toscrape.com/media/cache/fe/72/fe72aea293c.jpg" {
		t.Fatalf("image = %q", img)
	}

	if _, ok := ExtractImage(mustDoc(t, `<div id="product_gallery"></div>`), base); ok {
		t.Fatalf("expected no image without img element")
	}
	if _, ok := ExtractImage(mustDoc(t, `<img src="x.jpg">`), base); ok {
		t.Fatalf("expected no image outside the gallery")
	}
}

func TestExtractBook(t *testing.T) {
	base, _ := url.Parse("https://books.toscrape.com/catalogue/")
	pageURL := "https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html"

	book, err := ExtractBook(mustDoc(t, detailHTML), pageURL, base)
	if err != nil {
		t.Fatalf("extract book: %v", err)
	}
	want := models.Book{
		Title:      "A Light in the Attic",
		PriceMinor: 5177,
		Currency:   "GBP",
		Category:   "Poetry",
		ImageURL:   "https://books.toscrape.com/media/cache/fe/72/fe72aea293c.jpg",
		URL:        pageURL,
	}
	if book.Rating == nil || *book.Rating != 3 {
		t.Fatalf("rating = %v, want 3", book.Rating)
	}
	book.Rating = nil
	if *book != want {
		t.Fatalf("book = %+v, want %+v", *book, want)
	}
}

func TestValidateBook(t *testing.T) {
	tests := []struct {
		name    string
		book    *models.Book
		wantErr bool
	}{
		{
			name:    "valid book",
			book:    &models.Book{Title: "Test Book", PriceMinor: 1000, Currency: "GBP", Rating: models.IntPtr(5), URL: "http://example.com"},
			wantErr: false,
		},
		{
			name:    "valid without rating",
			book:    &models.Book{Title: "Test Book", URL: "http://example.com"},
			wantErr: false,
		},
		{
			name:    "nil book",
			book:    nil,
			wantErr: true,
		},
		{
			name:    "missing title",
			book:    &models.Book{Title: " ", URL: "http://example.com"},
			wantErr: true,
		},
		{
			name:    "missing url",
			book:    &models.Book{Title: "Test Book"},
			wantErr: true,
		},
		{
			name:    "rating out of range",
			book:    &models.Book{Title: "Test Book", URL: "http://example.com", Rating: models.IntPtr(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBook(tt.book)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBook() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
