package api

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aluiziolira/bookcatalog/httpx"
	"github.com/aluiziolira/bookcatalog/models"
	"github.com/aluiziolira/bookcatalog/store"
)

// BookResponse is the wire shape of a stored book. Price is in major units.
type BookResponse struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	PriceMinor int64   `json:"price_minor"`
	Currency   string  `json:"currency"`
	Rating     *int    `json:"rating"`
	Category   string  `json:"category,omitempty"`
	ImageURL   string  `json:"img_url,omitempty"`
	URL        string  `json:"url"`
}

func toResponse(b models.StoredBook) BookResponse {
	return BookResponse{
		ID:         b.ID,
		Title:      b.Title,
		Price:      float64(b.PriceMinor) / 100,
		PriceMinor: b.PriceMinor,
		Currency:   b.Currency,
		Rating:     b.Rating,
		Category:   b.Category,
		ImageURL:   b.ImageURL,
		URL:        b.URL,
	}
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		badRequest(w, r, err)
		return
	}
	s.writePage(w, r, store.Filter{}, page)
}

func (s *Server) searchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	if filter.Empty() {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
			"at least one of title, category, min_rating or max_price is required", nil)
		return
	}
	page, err := parsePage(q)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	s.writePage(w, r, filter, page)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, f store.Filter, p store.PageRequest) {
	p = p.Normalized()
	res, err := s.catalog.Search(r.Context(), f, p)
	if err != nil {
		s.internalError(w, r, "search books", err)
		return
	}

	items := make([]BookResponse, 0, len(res.Items))
	for _, b := range res.Items {
		items = append(items, toResponse(b))
	}
	totalPages := store.TotalPages(res.Total, p.PerPage)
	httpx.JSON(w, r, http.StatusOK, items, map[string]any{
		"page":        p.Page,
		"per_page":    p.PerPage,
		"total_pages": totalPages,
		"total_items": res.Total,
		"has_next":    p.Page < totalPages,
		"has_prev":    p.Page > 1,
	})
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a positive integer", nil)
		return
	}
	b, err := s.catalog.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "book not found", nil)
			return
		}
		s.internalError(w, r, "get book", err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, toResponse(b), nil)
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.internalError(w, r, "list categories", err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	httpx.JSON(w, r, http.StatusOK, cats, nil)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op, slog.Any("error", err), slog.String("request_id", httpx.RequestIDFrom(r)))
	httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
}

// fieldError reports a malformed query parameter.
type fieldError struct {
	field, msg string
}

func (e *fieldError) Error() string { return e.field + " " + e.msg }

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var fe *fieldError
	if errors.As(err, &fe) {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query parameter",
			[]httpx.ErrorDetail{{Field: fe.field, Message: fe.msg}})
		return
	}
	httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
}

func queryInt(q url.Values, key string) (int, bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, &fieldError{field: key, msg: "must be an integer"}
	}
	return v, true, nil
}

func parsePage(q url.Values) (store.PageRequest, error) {
	var p store.PageRequest
	var err error
	if p.Page, _, err = queryInt(q, "page"); err != nil {
		return p, err
	}
	if p.PerPage, _, err = queryInt(q, "per_page"); err != nil {
		return p, err
	}
	return p, nil
}

func parseFilter(q url.Values) (store.Filter, error) {
	f := store.Filter{
		Title:    strings.TrimSpace(q.Get("title")),
		Category: strings.TrimSpace(q.Get("category")),
	}

	rating, ok, err := queryInt(q, "min_rating")
	if err != nil {
		return f, err
	}
	if ok {
		if rating < 1 || rating > 5 {
			return f, &fieldError{field: "min_rating", msg: "must be between 1 and 5"}
		}
		f.MinRating = &rating
	}

	if raw := strings.TrimSpace(q.Get("max_price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			return f, &fieldError{field: "max_price", msg: "must be a number"}
		}
		if price < 0 {
			return f, &fieldError{field: "max_price", msg: fmt.Sprintf("must not be negative, got %v", price)}
		}
		f.MaxPrice = &price
	}
	return f, nil
}
