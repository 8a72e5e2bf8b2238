package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/domain"
	s "github.com/fjod/storefront/internal/service"
)

type ProductCatalog interface {
	List(ctx context.Context, q s.ListQuery) (*s.ProductPage, error)
	Detail(ctx context.Context, id int64) (*s.ProductDetail, error)
	Search(ctx context.Context, term string) ([]*domain.Product, error)
}

type ProductHandler struct {
	catalog ProductCatalog
	timeout time.Duration
}

func NewProductHandler(catalog ProductCatalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
}

// GET /api/v1/products?page=&category=&search=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}

	res, err := h.catalog.List(ctx, s.ListQuery{
		Page:     page,
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		handleServiceError(w, r, err, "/products")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GET /api/v1/products/search?q=
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, err, "/products")
		return
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseID(r, "id")
	if !ok {
		stateFrom(r).Flash("error", "Invalid product")
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:    "Invalid product",
			Code:     "invalid_id",
			Redirect: "/products",
		})
		return
	}

	res, err := h.catalog.Detail(ctx, id)
	if err != nil {
		handleServiceError(w, r, err, "/products")
		return
	}
	respondJSON(w, http.StatusOK, res)
}
