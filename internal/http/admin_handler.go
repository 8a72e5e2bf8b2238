package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	s "github.com/fjod/storefront/internal/service"
)

type ProductAdmin interface {
	Dashboard(ctx context.Context) (*s.Dashboard, error)
	Create(ctx context.Context, in s.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id int64, in s.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
	UpdateStock(ctx context.Context, id int64, stock string) error
}

type AdminHandler struct {
	admin   ProductAdmin
	timeout time.Duration
}

func NewAdminHandler(admin ProductAdmin, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		admin:   admin,
		timeout: timeout,
	}
}

const adminProductsPage = "/admin/products"

type UpdateStockRequestDTO struct {
	StockQuantity string `json:"stock_quantity"`
}

// GET /api/v1/admin/products
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dash, err := h.admin.Dashboard(ctx)
	if err != nil {
		handleServiceError(w, r, err, "/")
		return
	}
	respondJSON(w, http.StatusOK, dash)
}

// POST /api/v1/admin/products
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req s.ProductInput
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	p, err := h.admin.Create(ctx, req)
	if err != nil {
		h.fail(w, r, err, "Failed to create product.")
		return
	}
	stateFrom(r).Flash("success", "Product created successfully.")
	respondMessage(w, r, http.StatusCreated, "success", adminProductsPage, p)
}

// PUT /api/v1/admin/products/{id}
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseID(r, "id")
	if !ok {
		respondInvalidID(w, "id")
		return
	}
	var req s.ProductInput
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	p, err := h.admin.Update(ctx, id, req)
	if err != nil {
		h.fail(w, r, err, "Failed to update product.")
		return
	}
	stateFrom(r).Flash("success", "Product updated successfully.")
	respondMessage(w, r, http.StatusOK, "success", adminProductsPage, p)
}

// DELETE /api/v1/admin/products/{id}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseID(r, "id")
	if !ok {
		respondInvalidID(w, "id")
		return
	}

	if err := h.admin.Delete(ctx, id); err != nil {
		h.fail(w, r, err, "Failed to delete product.")
		return
	}
	stateFrom(r).Flash("success", "Product deleted successfully.")
	respondMessage(w, r, http.StatusOK, "success", adminProductsPage, nil)
}

// PUT /api/v1/admin/products/{id}/stock
func (h *AdminHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseID(r, "id")
	if !ok {
		respondInvalidID(w, "id")
		return
	}
	var req UpdateStockRequestDTO
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	if err := h.admin.UpdateStock(ctx, id, req.StockQuantity); err != nil {
		h.fail(w, r, err, "Failed to update stock.")
		return
	}
	stateFrom(r).Flash("success", "Stock updated successfully.")
	respondMessage(w, r, http.StatusOK, "success", adminProductsPage, nil)
}

// fail keeps the mapped status but uses the admin screen's wording for
// storage failures.
func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	m := mapError(err)
	if m.status >= http.StatusInternalServerError {
		m.message = fallback
	}
	writeError(w, r, err, m, adminProductsPage)
}
