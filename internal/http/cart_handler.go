package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/session"
	s "github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type Cart interface {
	Add(ctx context.Context, state *session.State, in s.CartItemInput) error
	Update(ctx context.Context, state *session.State, in s.CartItemInput) error
	Remove(state *session.State, productID int64)
	Clear(state *session.State)
	View(ctx context.Context, state *session.State) (*s.CartView, error)
	Count(state *session.State) int
}

type CartHandler struct {
	cart    Cart
	timeout time.Duration
}

func NewCartHandler(cart Cart, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

type CountResponse struct {
	Count int `json:"count"`
}

type UpdateQuantityRequestDTO struct {
	Quantity string `json:"quantity"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.View(ctx, stateFrom(r))
	if err != nil {
		handleServiceError(w, r, err, "/cart")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GET /api/v1/cart/count
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CountResponse{Count: h.cart.Count(stateFrom(r))})
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req s.CartItemInput
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	state := stateFrom(r)
	if err := h.cart.Add(ctx, state, req); err != nil {
		handleServiceError(w, r, err, "/products/"+req.ProductID)
		return
	}
	respondMessage(w, r, http.StatusCreated, "success", "/cart", CountResponse{Count: h.cart.Count(state)})
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	state := stateFrom(r)
	err := h.cart.Update(ctx, state, s.CartItemInput{
		ProductID: chi.URLParam(r, "product_id"),
		Quantity:  req.Quantity,
	})
	if err != nil {
		handleServiceError(w, r, err, "/cart")
		return
	}
	respondMessage(w, r, http.StatusOK, "success", "/cart", CountResponse{Count: h.cart.Count(state)})
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(r, "product_id")
	if !ok {
		stateFrom(r).Flash("error", "Invalid product ID")
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:    "Invalid product ID",
			Code:     "invalid_product_id",
			Details:  "product_id must be a positive integer, got " + strconv.Quote(chi.URLParam(r, "product_id")),
			Redirect: "/cart",
		})
		return
	}

	state := stateFrom(r)
	h.cart.Remove(state, productID)
	respondMessage(w, r, http.StatusOK, "success", "/cart", CountResponse{Count: h.cart.Count(state)})
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	state := stateFrom(r)
	h.cart.Clear(state)
	respondMessage(w, r, http.StatusOK, "success", "/cart", CountResponse{Count: 0})
}
