package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventTypeOrderPlaced = "order.placed"

// OrderPlacedEvent is the outbox payload written in the same transaction as the order.
type OrderPlacedEvent struct {
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PlacedAt    time.Time       `json:"placed_at"`
}
