package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/session"
	s "github.com/fjod/storefront/internal/service"
)

type Checkout interface {
	Preview(ctx context.Context, state *session.State) (*s.CheckoutPreview, error)
	PlaceOrder(ctx context.Context, state *session.State, in s.CheckoutInput) (*s.PlaceOrderResult, error)
}

type CheckoutHandler struct {
	checkout Checkout
	timeout  time.Duration
}

func NewCheckoutHandler(checkout Checkout, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	preview, err := h.checkout.Preview(ctx, stateFrom(r))
	if err != nil {
		handleServiceError(w, r, err, "/cart")
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req s.CheckoutInput
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	res, err := h.checkout.PlaceOrder(ctx, stateFrom(r), req)
	if err != nil {
		handleServiceError(w, r, err, "/checkout")
		return
	}
	respondMessage(w, r, http.StatusCreated, "success", "/orders/"+strconv.FormatInt(res.OrderID, 10), res)
}
