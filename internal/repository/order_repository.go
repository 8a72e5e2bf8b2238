package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

type OrderRepository struct {
	db dbtx
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (int64, error) {
	query := `INSERT INTO orders (user_id, total_amount, status, shipping_address, shipping_city,
	                              shipping_postal_code, shipping_country)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`

	status := o.Status
	if status == "" {
		status = domain.OrderStatusPending
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		o.UserID,
		o.TotalAmount,
		string(status),
		o.ShippingAddress,
		o.ShippingCity,
		o.ShippingPostalCode,
		o.ShippingCountry,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (r *OrderRepository) AddItems(ctx context.Context, orderID int64, items []domain.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, product_name, quantity, price_at_purchase)
	          VALUES ($1, $2, $3, $4, $5)`

	for _, item := range items {
		_, err := r.db.ExecContext(ctx, query,
			orderID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.PriceAtPurchase,
		)
		if err != nil {
			return fmt.Errorf("insert order item for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// GetByUserID returns order headers, newest first.
func (r *OrderRepository) GetByUserID(ctx context.Context, userID int64) ([]*domain.Order, error) {
	query := `SELECT id, user_id, total_amount, status, shipping_address, shipping_city,
	                 shipping_postal_code, shipping_country, created_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT id, user_id, total_amount, status, shipping_address, shipping_city,
	                 shipping_postal_code, shipping_country, created_at
	          FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	items, err := r.items(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// items prefers the current product name and falls back to the one stored at purchase.
func (r *OrderRepository) items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	query := `SELECT oi.order_id, oi.product_id, COALESCE(p.name, oi.product_name), oi.quantity, oi.price_at_purchase
	          FROM order_items oi
	          LEFT JOIN products p ON p.id = oi.product_id
	          WHERE oi.order_id = $1
	          ORDER BY oi.id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.PriceAtPurchase,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalAmount,
		&status,
		&o.ShippingAddress,
		&o.ShippingCity,
		&o.ShippingPostalCode,
		&o.ShippingCountry,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}
