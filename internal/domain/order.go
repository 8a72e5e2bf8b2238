package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem is a single order line. PriceAtPurchase is the unit price captured
// at checkout and never follows later catalog price changes.
type OrderItem struct {
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name,omitempty"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"user_id"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Status             OrderStatus     `json:"status"`
	ShippingAddress    string          `json:"shipping_address"`
	ShippingCity       string          `json:"shipping_city"`
	ShippingPostalCode string          `json:"shipping_postal_code"`
	ShippingCountry    string          `json:"shipping_country"`
	Items              []OrderItem     `json:"items,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}
