package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

type Orders interface {
	GetForUser(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	ListForUser(ctx context.Context, userID int64) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  Orders
	timeout time.Duration
}

func NewOrdersHandler(orders Orders, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrdersResponse struct {
	Orders []*domain.Order `json:"orders"`
}

// GET /api/v1/orders
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListForUser(ctx, stateFrom(r).UserID())
	if err != nil {
		handleServiceError(w, r, err, "/profile")
		return
	}
	respondJSON(w, http.StatusOK, &OrdersResponse{Orders: orders})
}

// GET /api/v1/orders/{order_id}
// The order confirmation page. Orders of other users look like missing ones.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseID(r, "order_id")
	if !ok {
		respondInvalidID(w, "order_id")
		return
	}

	order, err := h.orders.GetForUser(ctx, stateFrom(r).UserID(), orderID)
	if err != nil {
		handleServiceError(w, r, err, "/")
		return
	}
	respondJSON(w, http.StatusOK, order)
}
